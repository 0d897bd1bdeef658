package arango

import (
	"context"
	"log"
	"time"

	driver "github.com/arangodb/go-driver"
	"go.uber.org/zap"
)

// Database bundles a native database handle with the transaction machinery
// running on it: one Template for document operations, one QueryBridge and
// one Manager. The embedded driver.Database exposes the raw driver surface;
// operations made through it directly do not join any unit of work.
type Database struct {
	client *Client
	driver.Database

	template *Template
	bridge   *QueryBridge
	manager  *Manager
	log      *zap.Logger
}

// NewDatabase connects to the endpoints and opens the named database,
// creating it when missing.
func NewDatabase(endpoints []string, name string, opts ...func(o *Options)) *Database {
	opt := newOptions(opts)
	client := newClient(endpoints, opt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := openDatabase(ctx, client, name)
	if err != nil {
		log.Fatalln(err)
	}

	bridge := NewQueryBridge()
	template := NewTemplate(db, bridge, opt.Logger)

	managerOpts := []ManagerOption{
		WithDefaultTimeout(opt.DefaultTimeout),
		WithLogger(opt.Logger),
	}
	if opt.RelaxedQueryScope {
		managerOpts = append(managerOpts, WithRelaxedQueryScope())
	}
	manager, err := NewManager(template, bridge, managerOpts...)
	if err != nil {
		log.Fatalln(err)
	}

	return &Database{
		client:   client,
		Database: db,
		template: template,
		bridge:   bridge,
		manager:  manager,
		log:      opt.Logger,
	}
}

func openDatabase(ctx context.Context, client *Client, name string) (driver.Database, error) {
	exists, err := client.DatabaseExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return client.Database(ctx, name)
	}

	db, err := client.CreateDatabase(ctx, name, nil)
	if driver.IsConflict(err) {
		// Someone else created it between the check and the create.
		return client.Database(ctx, name)
	}
	return db, err
}

// Close drops the client reference. The driver pools its connections
// internally, so there is nothing else to shut down.
func (t *Database) Close() {
	t.client = nil
}

func (t *Database) Template() *Template {
	return t.template
}

func (t *Database) Manager() *Manager {
	return t.manager
}

// Begin starts or joins a unit of work whose models resolve against this
// database.
func (t *Database) Begin(ctx context.Context, opts ...TxnOption) (*Txn, error) {
	txn, err := t.manager.Begin(ctx, opts...)
	if err != nil {
		return nil, err
	}
	txn.db = t
	return txn, nil
}

// Txn runs fn inside one unit of work: commit when fn returns nil, rollback
// when it returns an error or panics. When ctx already carries a unit of
// work for this database, fn participates in it and the commit or rollback
// here only takes effect once the outermost unit of work completes.
func (t *Database) Txn(ctx context.Context, fn func(txn *Txn) error, opts ...TxnOption) error {
	txn, err := t.Begin(ctx, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if err := txn.Rollback(); err != nil {
				t.log.Warn("rollback after panic failed", zap.Error(err))
			}
			panic(r)
		}
	}()

	if err := fn(txn); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil {
			t.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return txn.Commit()
}

// Set creates or replaces the document outside any unit of work.
func (t *Database) Set(ctx context.Context, model any) error {
	name := GetModelName(model)
	if name == "" {
		return ErrInvalidModelName
	}
	if GetKey(model) == "" {
		return ErrNoKey
	}

	_, err := t.template.Save(ctx, name, model)
	return err
}

// Unmarshal reads the document with the given key into model, outside any
// unit of work.
func (t *Database) Unmarshal(ctx context.Context, key string, model any) error {
	name := GetModelName(model)
	if name == "" {
		return ErrInvalidModelName
	}

	_, err := t.template.Read(ctx, name, key, model)
	return err
}
