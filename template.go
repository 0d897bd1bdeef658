package arango

import (
	"context"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Template runs document operations and AQL queries against one database.
// Every operation asks the QueryBridge whether a unit of work is in force in
// its context and, if so, carries the stream transaction id on the native
// call; the first operation inside a unit of work is what actually begins
// the stream transaction. Missing collections are created on first use,
// outside any transaction.
//
// Template is the manager's Operations collaborator; NewDatabase wires one
// Template, one QueryBridge and one Manager together.
type Template struct {
	db          driver.Database
	bridge      *QueryBridge
	log         *zap.Logger
	collections *collectionCache
}

func NewTemplate(db driver.Database, bridge *QueryBridge, log *zap.Logger) *Template {
	if log == nil {
		log = zap.NewNop()
	}
	return &Template{
		db:          db,
		bridge:      bridge,
		log:         log,
		collections: newCollectionCache(db),
	}
}

func (t *Template) DatabaseName() string {
	return t.db.Name()
}

func (t *Template) Database() driver.Database {
	return t.db
}

// TransactionalContext returns a context carrying the id of the stream
// transaction covering the given collections, beginning it if this is the
// first operation of the unit of work. Without a unit of work in ctx it
// returns ctx unchanged.
func (t *Template) TransactionalContext(ctx context.Context, collections ...string) (context.Context, error) {
	id, err := t.bridge.CurrentTransaction(ctx, collections)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return ctx, nil
	}
	return driver.WithTransactionID(ctx, id), nil
}

// Collection returns the named collection, creating it when missing. The
// lookup deliberately ignores any transaction in ctx: collection creation is
// not transactional and must happen before a stream transaction declaring
// the collection begins.
func (t *Template) Collection(ctx context.Context, name string) (driver.Collection, error) {
	return t.collections.get(ctx, name)
}

// EnsureCollections creates the collections (and the persistent indexes
// declared by db:"index" tags) for the given models up front, one errgroup
// worker per model. Declaring a collection on a unit of work is only useful
// when the collection already exists, so call this during startup.
func (t *Template) EnsureCollections(ctx context.Context, models ...any) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, model := range models {
		name, indexes := ParseModelIndex(model)
		if name == "" {
			return errors.WithStack(ErrInvalidModelName)
		}
		g.Go(func() error {
			col, err := t.collections.get(ctx, name)
			if err != nil {
				return err
			}
			for _, field := range indexes {
				if _, _, err := col.EnsurePersistentIndex(ctx, []string{field}, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Insert creates a document. If the document carries no key the store
// generates one; the returned meta has the final key.
func (t *Template) Insert(ctx context.Context, collection string, doc any) (driver.DocumentMeta, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return driver.DocumentMeta{}, err
	}
	return col.CreateDocument(tctx, doc)
}

// Save creates the document or replaces the existing one with the same key.
func (t *Template) Save(ctx context.Context, collection string, doc any) (driver.DocumentMeta, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return driver.DocumentMeta{}, err
	}
	return col.CreateDocument(driver.WithOverwrite(tctx), doc)
}

func (t *Template) Read(ctx context.Context, collection, key string, result any) (driver.DocumentMeta, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return driver.DocumentMeta{}, err
	}
	meta, err := col.ReadDocument(tctx, key, result)
	return meta, notFound(err, collection, key)
}

// Update patches the stored document with the non-key fields of update.
func (t *Template) Update(ctx context.Context, collection, key string, update any) (driver.DocumentMeta, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return driver.DocumentMeta{}, err
	}
	meta, err := col.UpdateDocument(tctx, key, update)
	return meta, notFound(err, collection, key)
}

func (t *Template) Replace(ctx context.Context, collection, key string, doc any) (driver.DocumentMeta, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return driver.DocumentMeta{}, err
	}
	meta, err := col.ReplaceDocument(tctx, key, doc)
	return meta, notFound(err, collection, key)
}

func (t *Template) Remove(ctx context.Context, collection, key string) error {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return err
	}
	_, err = col.RemoveDocument(tctx, key)
	return notFound(err, collection, key)
}

func (t *Template) Exists(ctx context.Context, collection, key string) (bool, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return false, err
	}
	return col.DocumentExists(tctx, key)
}

func (t *Template) Count(ctx context.Context, collection string) (int64, error) {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return 0, err
	}
	return col.Count(tctx)
}

func (t *Template) Truncate(ctx context.Context, collection string) error {
	col, tctx, err := t.prepare(ctx, collection)
	if err != nil {
		return err
	}
	return col.Truncate(tctx)
}

// Query runs AQL inside the current unit of work, if any. Collections the
// query touches must be passed so the transaction can cover them; cursor
// batches fetched later carry the transaction id too.
func (t *Template) Query(ctx context.Context, query string, bindVars map[string]any, collections ...string) (driver.Cursor, error) {
	tctx, err := t.TransactionalContext(ctx, collections...)
	if err != nil {
		return nil, err
	}
	cursor, err := t.db.Query(tctx, query, bindVars)
	if err != nil {
		return nil, err
	}
	if tctx == ctx {
		return cursor, nil
	}
	return &txnCursor{Cursor: cursor, ctx: tctx}, nil
}

// QueryOne runs the query and decodes the first result, reporting
// ErrRecordNotFound on an empty result set.
func (t *Template) QueryOne(ctx context.Context, query string, bindVars map[string]any, result any, collections ...string) error {
	cursor, err := t.Query(ctx, query, bindVars, collections...)
	if err != nil {
		return err
	}
	defer cursor.Close()
	_, err = cursor.ReadDocument(ctx, result)
	if driver.IsNoMoreDocuments(err) {
		return errors.WithStack(ErrRecordNotFound)
	}
	return err
}

// QueryAll runs the query and drains the cursor.
func (t *Template) QueryAll(ctx context.Context, query string, bindVars map[string]any, collections ...string) ([]M, error) {
	cursor, err := t.Query(ctx, query, bindVars, collections...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var list []M
	for {
		doc := Map()
		_, err := cursor.ReadDocument(ctx, &doc)
		if driver.IsNoMoreDocuments(err) {
			return list, nil
		}
		if err != nil {
			return nil, err
		}
		list = append(list, doc)
	}
}

// Exec runs a query for its side effects and discards the results.
func (t *Template) Exec(ctx context.Context, query string, bindVars map[string]any, collections ...string) error {
	cursor, err := t.Query(ctx, query, bindVars, collections...)
	if err != nil {
		return err
	}
	return cursor.Close()
}

// prepare opens the collection and resolves the transactional context for an
// operation on it. Ensuring the collection runs on the bare context first;
// only then may the stream transaction begin.
func (t *Template) prepare(ctx context.Context, collection string) (driver.Collection, context.Context, error) {
	col, err := t.collections.get(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	tctx, err := t.TransactionalContext(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	return col, tctx, nil
}

func notFound(err error, collection, key string) error {
	if driver.IsNotFound(err) {
		return errors.Wrapf(ErrRecordNotFound, "%s/%s", collection, key)
	}
	return err
}

// txnCursor keeps cursor continuation calls inside the transaction: batch
// fetches use the transactional context the query ran with, which only adds
// the transaction id to whatever context the caller passes.
type txnCursor struct {
	driver.Cursor
	ctx context.Context
}

func (c *txnCursor) ReadDocument(_ context.Context, result any) (driver.DocumentMeta, error) {
	return c.Cursor.ReadDocument(c.ctx, result)
}
