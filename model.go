package arango

import (
	"fmt"
	"sort"
	"strings"

	driver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
)

// Model is a fluent view of one collection inside a unit of work. Filters
// are equality maps and sorts are field-to-direction maps, where a negative
// direction means descending.
type Model struct {
	txn      *Txn
	template *Template
	name     string
}

func NewModel(txn *Txn, model any) *Model {
	modelName := GetModelName(model)
	if modelName == "" {
		panic(ErrInvalidModelName)
	}
	template := txn.template()
	if template == nil {
		panic(errors.New("unit of work is not attached to document operations"))
	}

	return &Model{txn: txn, template: template, name: modelName}
}

// Set creates or replaces the document under the model's key.
func (m *Model) Set(model any) error {
	key := GetKey(model)
	if key == "" {
		return ErrNoKey
	}

	_, err := m.template.Save(m.txn.ctx, m.name, model)
	return err
}

// Insert creates the document and returns its key; a model without a key
// gets a store-generated one.
func (m *Model) Insert(model any) (string, error) {
	meta, err := m.template.Insert(m.txn.ctx, m.name, model)
	if err != nil {
		return "", err
	}
	return meta.Key, nil
}

func (m *Model) Del(key string) error {
	return m.template.Remove(m.txn.ctx, m.name, key)
}

// Update patches the stored document with the non-key fields of update and
// returns the document as stored afterwards. The parameter can be a
// structure or a Map containing the key.
func (m *Model) Update(update any) (M, error) {
	key := GetKey(update)
	if key == "" {
		return nil, ErrNoKey
	}

	newRecord := Map()
	ctx := driver.WithReturnNew(m.txn.ctx, &newRecord)
	if _, err := m.template.Update(ctx, m.name, key, update); err != nil {
		return nil, err
	}
	return newRecord, nil
}

// Inc adds the given deltas to numeric fields of the document. Missing
// fields count from zero; a missing document is left alone.
func (m *Model) Inc(key string, fields M) error {
	if len(fields) == 0 {
		return nil
	}

	bind := map[string]any{"@collection": m.name, "key": key}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for i, name := range names {
		f := fmt.Sprintf("incField%d", i)
		v := fmt.Sprintf("incValue%d", i)
		bind[f] = name
		bind[v] = fields[name]
		parts = append(parts, fmt.Sprintf("[@%s]: d.@%s + @%s", f, f, v))
	}

	query := fmt.Sprintf(`LET d = DOCUMENT(@@collection, @key) FILTER d != null UPDATE d WITH { %s } IN @@collection`, strings.Join(parts, ", "))
	return m.template.Exec(m.txn.ctx, query, bind, m.name)
}

func (m *Model) Get(key string, projection ...any) (M, error) {
	doc := Map()
	if err := m.Unmarshal(key, &doc, projection...); err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *Model) Unmarshal(key, model any, projection ...any) error {
	k, ok := key.(string)
	if !ok || k == "" {
		return ErrNoKey
	}
	if len(projection) > 0 {
		bind := map[string]any{"@collection": m.name, "key": k}
		if fields := projectionList(projection[0], bind); fields != "" {
			query := fmt.Sprintf(`LET d = DOCUMENT(@@collection, @key) FILTER d != null RETURN KEEP(d, %s)`, fields)
			return m.template.QueryOne(m.txn.ctx, query, bind, model, m.name)
		}
	}

	_, err := m.template.Read(m.txn.ctx, m.name, k, model)
	return err
}

func (m *Model) Has(key string) (bool, error) {
	return m.template.Exists(m.txn.ctx, m.name, key)
}

// Count returns the number of documents matching the equality filter; a nil
// or empty filter counts the whole collection.
func (m *Model) Count(filter M) (int64, error) {
	if len(filter) == 0 {
		return m.template.Count(m.txn.ctx, m.name)
	}

	bind := map[string]any{"@collection": m.name}
	query := fmt.Sprintf(`FOR d IN @@collection%s COLLECT WITH COUNT INTO total RETURN total`, filterClause(filter, bind))
	var count int64
	if err := m.template.QueryOne(m.txn.ctx, query, bind, &count, m.name); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Model) First(filter, sortBy M) (M, error) {
	bind := map[string]any{"@collection": m.name}
	query := fmt.Sprintf(`FOR d IN @@collection%s%s LIMIT 1 RETURN d`, filterClause(filter, bind), sortClause(sortBy, bind))

	doc := Map()
	if err := m.template.QueryOne(m.txn.ctx, query, bind, &doc, m.name); err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *Model) Pagination(filter, sortBy M, page, pageSize int64) (total int64, list []M, err error) {
	total, err = m.Count(filter)
	if err != nil {
		return
	}

	if total < 1 {
		return
	}

	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = 1
	}

	bind := map[string]any{
		"@collection": m.name,
		"offset":      (page - 1) * pageSize,
		"count":       pageSize,
	}
	query := fmt.Sprintf(`FOR d IN @@collection%s%s LIMIT @offset, @count RETURN d`, filterClause(filter, bind), sortClause(sortBy, bind))
	list, err = m.template.QueryAll(m.txn.ctx, query, bind, m.name)
	return
}

// Next returns the page after lastKey in key order; an empty lastKey starts
// from the beginning.
func (m *Model) Next(filter M, lastKey string, pageSize int64) ([]M, error) {
	if pageSize < 1 {
		pageSize = 10
	}

	bind := map[string]any{"@collection": m.name, "count": pageSize}
	conds := filterClause(filter, bind)
	if lastKey != "" {
		bind["lastKey"] = lastKey
		if conds == "" {
			conds = " FILTER d._key > @lastKey"
		} else {
			conds += " AND d._key > @lastKey"
		}
	}

	query := fmt.Sprintf(`FOR d IN @@collection%s SORT d._key ASC LIMIT @count RETURN d`, conds)
	return m.template.QueryAll(m.txn.ctx, query, bind, m.name)
}

// List walks all matching documents in key order, `cb` return `false` will
// stop iterate.
func (m *Model) List(filter M, size int64, cb func(doc M, total int64) (bool, error)) error {
	total, err := m.Count(filter)
	if err != nil {
		return err
	}
	if total < 1 {
		return nil
	}

	if size < 1 {
		size = 10
	}

	lastKey := ""
	for {
		batch, err := m.Next(filter, lastKey, size)
		if err != nil {
			return err
		}

		for _, v := range batch {
			if ok, err := cb(v, total); err != nil || !ok {
				return err
			}
		}

		n := len(batch)
		if n > 0 {
			key, ok := batch[n-1]["_key"].(string)
			if ok {
				lastKey = key
				continue
			}
		}

		break
	}

	return nil
}

// filterClause renders an equality filter into AQL, pushing both attribute
// names and values through bind variables.
func filterClause(filter M, bind map[string]any) string {
	if len(filter) == 0 {
		return ""
	}

	names := make([]string, 0, len(filter))
	for name := range filter {
		names = append(names, name)
	}
	sort.Strings(names)

	conds := make([]string, 0, len(names))
	for i, name := range names {
		f := fmt.Sprintf("filterField%d", i)
		v := fmt.Sprintf("filterValue%d", i)
		bind[f] = name
		bind[v] = filter[name]
		conds = append(conds, fmt.Sprintf("d.@%s == @%s", f, v))
	}
	return " FILTER " + strings.Join(conds, " AND ")
}

func sortClause(sortBy M, bind map[string]any) string {
	if len(sortBy) == 0 {
		return ""
	}

	names := make([]string, 0, len(sortBy))
	for name := range sortBy {
		names = append(names, name)
	}
	sort.Strings(names)

	terms := make([]string, 0, len(names))
	for i, name := range names {
		s := fmt.Sprintf("sortField%d", i)
		bind[s] = name
		terms = append(terms, fmt.Sprintf("d.@%s %s", s, sortDirection(sortBy[name])))
	}
	return " SORT " + strings.Join(terms, ", ")
}

func sortDirection(v any) string {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return "DESC"
		}
	case int32:
		if n < 0 {
			return "DESC"
		}
	case int64:
		if n < 0 {
			return "DESC"
		}
	case float64:
		if n < 0 {
			return "DESC"
		}
	case string:
		if strings.EqualFold(n, "desc") {
			return "DESC"
		}
	}
	return "ASC"
}

func projectionList(projection any, bind map[string]any) string {
	var fields []string
	switch p := projection.(type) {
	case []string:
		fields = p
	case string:
		fields = []string{p}
	case M:
		for name := range p {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}

	parts := make([]string, 0, len(fields))
	for i, name := range fields {
		f := fmt.Sprintf("projField%d", i)
		bind[f] = name
		parts = append(parts, "@"+f)
	}
	return strings.Join(parts, ", ")
}
