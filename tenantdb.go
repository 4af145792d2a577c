package microservice

import (
	"context"
	"strings"
	"unicode"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TenantDB wraps a DocumentStore with tenant isolation. Every operation
// requires an active session in ctx and scopes reads and writes to that
// session's tenant:
//
//   - List injects the tenant filter into every query, regardless of
//     caller-supplied filters.
//   - Get refuses to reveal whether a document outside the tenant exists:
//     both "owned by another tenant" and "no such name" produce the same
//     access-denied error.
//   - Insert pins the document to the session tenant, discarding any
//     caller-supplied tenant.
//   - Update and Delete verify ownership before touching the store, and
//     Update strips the tenant field from the patch.
//
// Lifecycle hooks dispatch around each write; a hook error aborts the
// operation before the store is touched.
type TenantDB struct {
	store       DocumentStore
	hooks       *Hooks
	logger      Logger
	tenantField string
}

type TenantDBOption func(*TenantDB)

func WithTenantDBLogger(logger Logger) TenantDBOption {
	return func(db *TenantDB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithTenantField overrides the reserved field name used to carry the
// tenant in filters and payloads. Defaults to "tenant_id".
func WithTenantField(field string) TenantDBOption {
	return func(db *TenantDB) {
		if field != "" {
			db.tenantField = field
		}
	}
}

func WithTenantDBHooks(hooks *Hooks) TenantDBOption {
	return func(db *TenantDB) {
		if hooks != nil {
			db.hooks = hooks
		}
	}
}

func NewTenantDB(store DocumentStore, opts ...TenantDBOption) *TenantDB {
	db := &TenantDB{
		store:       store,
		hooks:       NewHooks(),
		logger:      defLogger{},
		tenantField: "tenant_id",
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *TenantDB) Hooks() *Hooks { return db.hooks }

// List returns the tenant's documents of the given doctype. The session
// tenant always wins: a caller-supplied tenant filter is overwritten
// before the store sees the query.
func (db *TenantDB) List(ctx context.Context, doctype string, filters Filters, opts ListOptions) ([]*Document, error) {
	session, err := RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	scoped := filters.Clone()
	if scoped == nil {
		scoped = Filters{}
	}
	scoped[db.tenantField] = session.TenantID
	return db.store.List(ctx, doctype, scoped, opts)
}

// Get fetches a document by name within the session tenant. A document
// owned by another tenant and a document that does not exist produce the
// same access-denied error, so names outside the tenant cannot be probed.
func (db *TenantDB) Get(ctx context.Context, doctype, name string) (*Document, error) {
	session, err := RequireSession(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := db.store.Get(ctx, doctype, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, denied(doctype, name)
		}
		return nil, err
	}
	if doc.TenantID != session.TenantID {
		db.logger.Warn("cross tenant access doctype=%s name=%s tenant=%s", doctype, name, session.TenantID)
		return nil, denied(doctype, name)
	}
	return doc, nil
}

// Insert creates a document pinned to the session tenant. Caller-supplied
// tenant fields are discarded. Without a name the document gets a
// generated one. Lifecycle order: before_validate, validate,
// before_insert, before_save, write, after_insert, after_save.
func (db *TenantDB) Insert(ctx context.Context, doc *Document) (*Document, error) {
	session, err := RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.Doctype == "" {
		return nil, ValidationFailed("document requires a doctype")
	}

	rec := doc.Clone()
	rec.TenantID = session.TenantID
	rec.Fields.Delete(db.tenantField)
	if rec.Name == "" {
		if v, ok := rec.GetString(attrName); ok && v != "" {
			rec.Name = v
		} else {
			rec.Name = generateName(rec.Doctype)
		}
	}
	rec.Fields.Delete(attrName)
	rec.Fields.Delete(attrDoctype)

	for _, event := range []Event{EventBeforeValidate, EventValidate, EventBeforeInsert, EventBeforeSave} {
		if err := db.hooks.Dispatch(ctx, event, rec); err != nil {
			return nil, err
		}
	}

	// hooks must not repin the tenant
	rec.TenantID = session.TenantID

	created, err := db.store.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	for _, event := range []Event{EventAfterInsert, EventAfterSave} {
		if err := db.hooks.Dispatch(ctx, event, created); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// Update applies patch fields to an existing document after verifying the
// session tenant owns it. The tenant field is stripped from the patch, so
// a document can never migrate between tenants through an update.
// Lifecycle order: before_validate, validate, before_update, before_save,
// write, after_update, after_save.
func (db *TenantDB) Update(ctx context.Context, doc *Document) (*Document, error) {
	if doc == nil || doc.Doctype == "" || doc.Name == "" {
		return nil, ValidationFailed("document requires a doctype and name")
	}

	current, err := db.Get(ctx, doc.Doctype, doc.Name)
	if err != nil {
		return nil, err
	}

	rec := current.Clone()
	patch := doc.Fields.Clone()
	patch.Delete(db.tenantField)
	patch.Delete(attrName)
	patch.Delete(attrDoctype)
	for _, k := range patch.Names() {
		v, _ := patch.Get(k)
		rec.Fields.Set(k, v)
	}

	for _, event := range []Event{EventBeforeValidate, EventValidate, EventBeforeUpdate, EventBeforeSave} {
		if err := db.hooks.Dispatch(ctx, event, rec); err != nil {
			return nil, err
		}
	}

	rec.TenantID = current.TenantID

	updated, err := db.store.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	for _, event := range []Event{EventAfterUpdate, EventAfterSave} {
		if err := db.hooks.Dispatch(ctx, event, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes a document after verifying the session tenant owns it.
// Lifecycle order: before_delete, delete, after_delete.
func (db *TenantDB) Delete(ctx context.Context, doctype, name string) error {
	doc, err := db.Get(ctx, doctype, name)
	if err != nil {
		return err
	}

	if err := db.hooks.Dispatch(ctx, EventBeforeDelete, doc); err != nil {
		return err
	}
	if err := db.store.Delete(ctx, doctype, name); err != nil {
		return err
	}
	return db.hooks.Dispatch(ctx, EventAfterDelete, doc)
}

// Count reports how many of the tenant's documents match the filters.
func (db *TenantDB) Count(ctx context.Context, doctype string, filters Filters) (int, error) {
	session, err := RequireSession(ctx)
	if err != nil {
		return 0, err
	}
	scoped := filters.Clone()
	if scoped == nil {
		scoped = Filters{}
	}
	scoped[db.tenantField] = session.TenantID
	return db.store.Count(ctx, doctype, scoped)
}

// Exists reports whether the tenant owns a document with the given name.
// Unlike Get it does not error on a miss.
func (db *TenantDB) Exists(ctx context.Context, doctype, name string) (bool, error) {
	_, err := db.Get(ctx, doctype, name)
	if err != nil {
		if IsCrossTenant(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func denied(doctype, name string) error {
	return errors.New("access denied", errors.CategoryAuthz).
		WithTextCode(TextCodeCrossTenantAccess).
		WithCode(errors.CodeForbidden).
		WithMetadata(map[string]any{
			"doctype": doctype,
			"name":    name,
		})
}

// generateName builds a readable unique name from the doctype initials,
// e.g. "Sales Order" -> "SO-<uuid>".
func generateName(doctype string) string {
	var initials strings.Builder
	for _, word := range strings.Fields(doctype) {
		for _, r := range word {
			initials.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	prefix := initials.String()
	if prefix == "" {
		prefix = "DOC"
	}
	return prefix + "-" + uuid.NewString()
}
