package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
	"github.com/vyogotech/erpnext-microservices-lib/store/memory"
)

func newDoc(t *testing.T, doctype, name, tenant string, fields map[string]any) *microservice.Document {
	t.Helper()
	doc := microservice.NewDocument(doctype)
	doc.Name = name
	doc.TenantID = tenant
	for k, v := range fields {
		val, err := microservice.ValueOf(v)
		require.NoError(t, err)
		doc.Set(k, val)
	}
	return doc
}

func TestStoreInsertAndGet(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", map[string]any{"status": "Open"}))
	require.NoError(t, err)

	doc, err := store.Get(ctx, "ToDo", "TD-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.TenantID)

	status, _ := doc.GetString("status")
	assert.Equal(t, "Open", status)
}

func TestStoreInsertDuplicateFails(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", nil))
	require.NoError(t, err)

	_, err = store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", nil))
	require.Error(t, err)
	assert.True(t, microservice.IsConflict(err))
}

func TestStoreGetMissing(t *testing.T) {
	store := memory.New()

	_, err := store.Get(context.Background(), "ToDo", "nope")
	require.Error(t, err)
	assert.True(t, microservice.IsNotFound(err))
}

func TestStoreListFiltersAndSorts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for _, name := range []string{"TD-3", "TD-1", "TD-2"} {
		_, err := store.Insert(ctx, newDoc(t, "ToDo", name, "acme", map[string]any{"status": "Open"}))
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-4", "acme", map[string]any{"status": "Closed"}))
	require.NoError(t, err)

	docs, err := store.List(ctx, "ToDo", microservice.Filters{"status": "Open"}, microservice.ListOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "TD-1", docs[0].Name)
	assert.Equal(t, "TD-3", docs[2].Name)
}

func TestStoreListTenantFilter(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", nil))
	require.NoError(t, err)
	_, err = store.Insert(ctx, newDoc(t, "ToDo", "TD-2", "globex", nil))
	require.NoError(t, err)

	docs, err := store.List(ctx, "ToDo", microservice.Filters{"tenant_id": "acme"}, microservice.ListOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "TD-1", docs[0].Name)
}

func TestStoreListPagingAndProjection(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for _, name := range []string{"TD-1", "TD-2", "TD-3"} {
		_, err := store.Insert(ctx, newDoc(t, "ToDo", name, "acme",
			map[string]any{"status": "Open", "secret": "hidden"}))
		require.NoError(t, err)
	}

	docs, err := store.List(ctx, "ToDo", nil, microservice.ListOptions{
		Limit:  2,
		Offset: 1,
		Fields: []string{"status"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "TD-2", docs[0].Name)
	assert.True(t, docs[0].Fields.Has("status"))
	assert.False(t, docs[0].Fields.Has("secret"))
}

func TestStoreUpdateAndDelete(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", map[string]any{"status": "Open"}))
	require.NoError(t, err)

	updated := newDoc(t, "ToDo", "TD-1", "acme", map[string]any{"status": "Closed"})
	_, err = store.Update(ctx, updated)
	require.NoError(t, err)

	doc, err := store.Get(ctx, "ToDo", "TD-1")
	require.NoError(t, err)
	status, _ := doc.GetString("status")
	assert.Equal(t, "Closed", status)

	require.NoError(t, store.Delete(ctx, "ToDo", "TD-1"))
	err = store.Delete(ctx, "ToDo", "TD-1")
	assert.True(t, microservice.IsNotFound(err))
}

func TestStoreReturnsCopies(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", map[string]any{"status": "Open"}))
	require.NoError(t, err)

	doc, err := store.Get(ctx, "ToDo", "TD-1")
	require.NoError(t, err)
	doc.Set("status", microservice.String("Mutated"))
	doc.TenantID = "globex"

	fresh, err := store.Get(ctx, "ToDo", "TD-1")
	require.NoError(t, err)
	status, _ := fresh.GetString("status")
	assert.Equal(t, "Open", status)
	assert.Equal(t, "acme", fresh.TenantID)
}

func TestStoreCountAndExists(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Insert(ctx, newDoc(t, "ToDo", "TD-1", "acme", map[string]any{"priority": 2}))
	require.NoError(t, err)
	_, err = store.Insert(ctx, newDoc(t, "ToDo", "TD-2", "acme", map[string]any{"priority": 1}))
	require.NoError(t, err)

	count, err := store.Count(ctx, "ToDo", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// query-string style filter compares loosely against typed values
	count, err = store.Count(ctx, "ToDo", microservice.Filters{"priority": "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ok, err := store.Exists(ctx, "ToDo", "TD-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "ToDo", "TD-9")
	require.NoError(t, err)
	assert.False(t, ok)
}
