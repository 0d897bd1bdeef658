package arango

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

func newModelTxn(t *testing.T) (*Txn, *fakeDatabase) {
	t.Helper()
	tpl, db := newTestTemplate()
	m, err := NewManager(tpl, tpl.bridge)
	require.NoError(t, err)
	txn, err := m.Begin(context.Background())
	require.NoError(t, err)
	return txn, db
}

func TestModelSetGetDel(t *testing.T) {
	txn, db := newModelTxn(t)

	u := &user{Key: "1", Name: "a", Age: 3}
	require.NoError(t, txn.Model(u).Set(u))
	require.Len(t, db.stream.begins, 1)
	require.Equal(t, []string{"user"}, db.stream.begins[0].cols.Write)

	doc, err := txn.Model(u).Get("1")
	require.NoError(t, err)
	require.Equal(t, "a", doc["name"])

	var got user
	require.NoError(t, txn.Model(u).Unmarshal("1", &got))
	require.Equal(t, *u, got)

	ok, err := txn.Model(u).Has("1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, txn.Model(u).Del("1"))
	_, err = txn.Model(u).Get("1")
	require.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, txn.Commit())
	require.Len(t, db.stream.commits, 1)
}

func TestModelSetWithoutKey(t *testing.T) {
	txn, _ := newModelTxn(t)

	err := txn.Model(&user{}).Set(&user{Name: "nameless"})
	require.ErrorIs(t, err, ErrNoKey)
}

func TestModelInsertGeneratesKey(t *testing.T) {
	txn, _ := newModelTxn(t)

	key, err := txn.Model(&user{}).Insert(&user{Name: "a"})
	require.NoError(t, err)
	require.NotEmpty(t, key)
}

func TestModelUpdate(t *testing.T) {
	txn, _ := newModelTxn(t)

	u := &user{Key: "1", Name: "a", Age: 3}
	require.NoError(t, txn.Model(u).Set(u))

	_, err := txn.Model(u).Update(M{"_key": "1", "age": 9})
	require.NoError(t, err)

	doc, err := txn.Model(u).Get("1")
	require.NoError(t, err)
	require.Equal(t, float64(9), doc["age"])
	require.Equal(t, "a", doc["name"])

	_, err = txn.Model(u).Update(M{"age": 9})
	require.ErrorIs(t, err, ErrNoKey)
}

func TestModelIncBuildsUpdateQuery(t *testing.T) {
	txn, db := newModelTxn(t)

	require.NoError(t, txn.Model("user").Inc("1", Map().Set("age", 2).Set("logins", -1)))

	call := db.lastQuery()
	require.Equal(t, `LET d = DOCUMENT(@@collection, @key) FILTER d != null UPDATE d WITH { [@incField0]: d.@incField0 + @incValue0, [@incField1]: d.@incField1 + @incValue1 } IN @@collection`, call.query)
	require.Equal(t, "user", call.bindVars["@collection"])
	require.Equal(t, "1", call.bindVars["key"])
	require.Equal(t, "age", call.bindVars["incField0"])
	require.Equal(t, 2, call.bindVars["incValue0"])
	require.Equal(t, "logins", call.bindVars["incField1"])
}

func TestModelCount(t *testing.T) {
	txn, db := newModelTxn(t)

	u := &user{Key: "1", Name: "a"}
	require.NoError(t, txn.Model(u).Set(u))

	// Without a filter the collection count is used directly.
	count, err := txn.Model(u).Count(nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	db.queueResult(int64(1))
	count, err = txn.Model(u).Count(Map().Set("name", "a"))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, `FOR d IN @@collection FILTER d.@filterField0 == @filterValue0 COLLECT WITH COUNT INTO total RETURN total`, db.lastQuery().query)
	require.Equal(t, "name", db.lastQuery().bindVars["filterField0"])
	require.Equal(t, "a", db.lastQuery().bindVars["filterValue0"])
}

func TestModelFirst(t *testing.T) {
	txn, db := newModelTxn(t)

	db.queueResult(M{"_key": "2", "age": float64(9)})
	doc, err := txn.Model("user").First(nil, Map().Set("age", -1))
	require.NoError(t, err)
	require.Equal(t, "2", doc["_key"])
	require.Equal(t, `FOR d IN @@collection SORT d.@sortField0 DESC LIMIT 1 RETURN d`, db.lastQuery().query)

	db.queueResult()
	_, err = txn.Model("user").First(Map().Set("age", 1), nil)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestModelPagination(t *testing.T) {
	txn, db := newModelTxn(t)

	u := &user{Key: "1", Name: "a"}
	require.NoError(t, txn.Model(u).Set(u))

	db.queueResult(M{"_key": "1", "name": "a"})
	total, list, err := txn.Model(u).Pagination(nil, nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	call := db.lastQuery()
	require.Equal(t, `FOR d IN @@collection LIMIT @offset, @count RETURN d`, call.query)
	require.Equal(t, int64(0), call.bindVars["offset"])
	require.Equal(t, int64(1), call.bindVars["count"])

	users := ToEntities[user](list)
	require.Len(t, users, 1)
	require.Equal(t, "a", users[0].Name)
}

func TestModelNextKeyset(t *testing.T) {
	txn, db := newModelTxn(t)

	db.queueResult(M{"_key": "3"})
	list, err := txn.Model("user").Next(Map().Set("state", "open"), "2", 5)
	require.NoError(t, err)
	require.Len(t, list, 1)

	call := db.lastQuery()
	require.Equal(t, `FOR d IN @@collection FILTER d.@filterField0 == @filterValue0 AND d._key > @lastKey SORT d._key ASC LIMIT @count RETURN d`, call.query)
	require.Equal(t, "2", call.bindVars["lastKey"])
	require.Equal(t, int64(5), call.bindVars["count"])
}

func TestModelList(t *testing.T) {
	txn, db := newModelTxn(t)

	u := &user{Key: "1", Name: "a"}
	require.NoError(t, txn.Model(u).Set(u))

	db.queueResult(M{"_key": "1", "name": "a"})
	db.queueResult()

	var seen []string
	err := txn.Model(u).List(nil, 1, func(doc M, total int64) (bool, error) {
		key, _ := doc["_key"].(string)
		seen = append(seen, key)
		log.Printf("total: %d, key: %s", total, key)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, seen)
}

func TestClauseBuilders(t *testing.T) {
	bind := map[string]any{}
	if got := filterClause(nil, bind); got != "" {
		t.Fatal(got)
	}
	if got := sortClause(nil, bind); got != "" {
		t.Fatal(got)
	}

	got := filterClause(Map().Set("b", 2).Set("a", 1), bind)
	if got != " FILTER d.@filterField0 == @filterValue0 AND d.@filterField1 == @filterValue1" {
		t.Fatal(got)
	}
	if bind["filterField0"] != "a" || bind["filterField1"] != "b" {
		t.Fatalf("%v", bind)
	}

	if dir := sortDirection(-1); dir != "DESC" {
		t.Fatal(dir)
	}
	if dir := sortDirection("desc"); dir != "DESC" {
		t.Fatal(dir)
	}
	if dir := sortDirection(1); dir != "ASC" {
		t.Fatal(dir)
	}
	if dir := sortDirection(nil); dir != "ASC" {
		t.Fatal(dir)
	}
}
