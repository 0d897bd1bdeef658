package arango

import (
	"context"
	"sync"

	driver "github.com/arangodb/go-driver"
	"golang.org/x/sync/singleflight"
)

// collectionCache hands out driver.Collection handles, creating missing
// collections on first use. Creation runs through singleflight so hot
// startup paths hitting the same new collection issue one create between
// them. Collections must exist before a stream transaction declaring them
// begins, which is why operations ensure their collection before resolving
// the transaction.
type collectionCache struct {
	db driver.Database

	mu    sync.Mutex
	known map[string]driver.Collection
	group singleflight.Group
}

func newCollectionCache(db driver.Database) *collectionCache {
	return &collectionCache{
		db:    db,
		known: make(map[string]driver.Collection),
	}
}

func (c *collectionCache) get(ctx context.Context, name string) (driver.Collection, error) {
	c.mu.Lock()
	col, ok := c.known[name]
	c.mu.Unlock()
	if ok {
		return col, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.open(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	col = v.(driver.Collection)

	c.mu.Lock()
	c.known[name] = col
	c.mu.Unlock()
	return col, nil
}

func (c *collectionCache) open(ctx context.Context, name string) (driver.Collection, error) {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return c.db.Collection(ctx, name)
	}

	col, err := c.db.CreateCollection(ctx, name, nil)
	if driver.IsConflict(err) {
		// Someone else created it between the check and the create.
		return c.db.Collection(ctx, name)
	}
	return col, err
}
