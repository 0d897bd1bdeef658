package arango

import (
	"context"
	"encoding/json"
	"fmt"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
)

var errTest = errors.New("boom")

type beginCall struct {
	cols driver.TransactionCollections
	opts driver.BeginTransactionOptions
}

// fakeStream records every native transaction call so tests can assert how
// often and with which collections the store was reached.
type fakeStream struct {
	begins  []beginCall
	commits []driver.TransactionID
	aborts  []driver.TransactionID

	beginErr  error
	commitErr error
	abortErr  error

	seq int
}

func (f *fakeStream) BeginTransaction(ctx context.Context, cols driver.TransactionCollections, opts *driver.BeginTransactionOptions) (driver.TransactionID, error) {
	if f.beginErr != nil {
		return "", f.beginErr
	}
	call := beginCall{cols: cols}
	if opts != nil {
		call.opts = *opts
	}
	f.begins = append(f.begins, call)
	f.seq++
	return driver.TransactionID(fmt.Sprintf("trx-%d", f.seq)), nil
}

func (f *fakeStream) CommitTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.CommitTransactionOptions) error {
	f.commits = append(f.commits, tid)
	return f.commitErr
}

func (f *fakeStream) AbortTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.AbortTransactionOptions) error {
	f.aborts = append(f.aborts, tid)
	return f.abortErr
}

type queryCall struct {
	query    string
	bindVars map[string]any
}

// fakeDatabase implements the parts of driver.Database the package touches;
// everything else panics through the embedded nil interface.
type fakeDatabase struct {
	driver.Database

	name        string
	stream      *fakeStream
	collections map[string]*fakeCollection
	queries     []queryCall
	results     [][]any
}

func newFakeDatabase(name string) *fakeDatabase {
	return &fakeDatabase{
		name:        name,
		stream:      &fakeStream{},
		collections: make(map[string]*fakeCollection),
	}
}

func (f *fakeDatabase) Name() string { return f.name }

func (f *fakeDatabase) BeginTransaction(ctx context.Context, cols driver.TransactionCollections, opts *driver.BeginTransactionOptions) (driver.TransactionID, error) {
	return f.stream.BeginTransaction(ctx, cols, opts)
}

func (f *fakeDatabase) CommitTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.CommitTransactionOptions) error {
	return f.stream.CommitTransaction(ctx, tid, opts)
}

func (f *fakeDatabase) AbortTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.AbortTransactionOptions) error {
	return f.stream.AbortTransaction(ctx, tid, opts)
}

func (f *fakeDatabase) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeDatabase) Collection(ctx context.Context, name string) (driver.Collection, error) {
	col, ok := f.collections[name]
	if !ok {
		return nil, driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1203}
	}
	return col, nil
}

func (f *fakeDatabase) CreateCollection(ctx context.Context, name string, options *driver.CreateCollectionOptions) (driver.Collection, error) {
	if _, ok := f.collections[name]; ok {
		return nil, driver.ArangoError{HasError: true, Code: 409, ErrorNum: 1207}
	}
	col := newFakeCollection(name)
	f.collections[name] = col
	return col, nil
}

// Query records the call and replays the next queued result set.
func (f *fakeDatabase) Query(ctx context.Context, query string, bindVars map[string]interface{}) (driver.Cursor, error) {
	f.queries = append(f.queries, queryCall{query: query, bindVars: bindVars})

	var docs []any
	if len(f.results) > 0 {
		docs = f.results[0]
		f.results = f.results[1:]
	}
	return &fakeCursor{docs: docs}, nil
}

func (f *fakeDatabase) queueResult(docs ...any) {
	f.results = append(f.results, docs)
}

func (f *fakeDatabase) lastQuery() queryCall {
	if len(f.queries) == 0 {
		return queryCall{}
	}
	return f.queries[len(f.queries)-1]
}

type fakeOperations struct {
	db *fakeDatabase
}

func (f *fakeOperations) DatabaseName() string      { return f.db.name }
func (f *fakeOperations) Database() driver.Database { return f.db }

type fakeCollection struct {
	driver.Collection

	name    string
	docs    map[string]M
	indexes [][]string
	seq     int
}

func newFakeCollection(name string) *fakeCollection {
	return &fakeCollection{name: name, docs: make(map[string]M)}
}

func (f *fakeCollection) Name() string { return f.name }

func (f *fakeCollection) CreateDocument(ctx context.Context, document interface{}) (driver.DocumentMeta, error) {
	doc := Map()
	if err := roundTrip(document, &doc); err != nil {
		return driver.DocumentMeta{}, err
	}
	key, _ := doc["_key"].(string)
	if key == "" {
		f.seq++
		key = fmt.Sprintf("%s-%d", f.name, f.seq)
		doc["_key"] = key
	}
	f.docs[key] = doc
	return driver.DocumentMeta{Key: key}, nil
}

func (f *fakeCollection) ReadDocument(ctx context.Context, key string, result interface{}) (driver.DocumentMeta, error) {
	doc, ok := f.docs[key]
	if !ok {
		return driver.DocumentMeta{}, driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1202}
	}
	if err := roundTrip(doc, result); err != nil {
		return driver.DocumentMeta{}, err
	}
	return driver.DocumentMeta{Key: key}, nil
}

func (f *fakeCollection) UpdateDocument(ctx context.Context, key string, update interface{}) (driver.DocumentMeta, error) {
	doc, ok := f.docs[key]
	if !ok {
		return driver.DocumentMeta{}, driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1202}
	}
	patch := Map()
	if err := roundTrip(update, &patch); err != nil {
		return driver.DocumentMeta{}, err
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["_key"] = key
	return driver.DocumentMeta{Key: key}, nil
}

func (f *fakeCollection) ReplaceDocument(ctx context.Context, key string, document interface{}) (driver.DocumentMeta, error) {
	if _, ok := f.docs[key]; !ok {
		return driver.DocumentMeta{}, driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1202}
	}
	doc := Map()
	if err := roundTrip(document, &doc); err != nil {
		return driver.DocumentMeta{}, err
	}
	doc["_key"] = key
	f.docs[key] = doc
	return driver.DocumentMeta{Key: key}, nil
}

func (f *fakeCollection) RemoveDocument(ctx context.Context, key string) (driver.DocumentMeta, error) {
	if _, ok := f.docs[key]; !ok {
		return driver.DocumentMeta{}, driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1202}
	}
	delete(f.docs, key)
	return driver.DocumentMeta{Key: key}, nil
}

func (f *fakeCollection) DocumentExists(ctx context.Context, key string) (bool, error) {
	_, ok := f.docs[key]
	return ok, nil
}

func (f *fakeCollection) Count(ctx context.Context) (int64, error) {
	return int64(len(f.docs)), nil
}

func (f *fakeCollection) Truncate(ctx context.Context) error {
	f.docs = make(map[string]M)
	return nil
}

func (f *fakeCollection) EnsurePersistentIndex(ctx context.Context, fields []string, options *driver.EnsurePersistentIndexOptions) (driver.Index, bool, error) {
	f.indexes = append(f.indexes, fields)
	return nil, true, nil
}

type fakeCursor struct {
	driver.Cursor

	docs []any
}

func (c *fakeCursor) HasMore() bool {
	return len(c.docs) > 0
}

func (c *fakeCursor) ReadDocument(ctx context.Context, result interface{}) (driver.DocumentMeta, error) {
	if len(c.docs) == 0 {
		return driver.DocumentMeta{}, driver.NoMoreDocumentsError{}
	}
	doc := c.docs[0]
	c.docs = c.docs[1:]
	if err := roundTrip(doc, result); err != nil {
		return driver.DocumentMeta{}, err
	}
	return driver.DocumentMeta{}, nil
}

func (c *fakeCursor) Close() error { return nil }

func roundTrip(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
