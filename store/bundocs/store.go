// Package bundocs persists documents through bun. It speaks SQLite and
// Postgres, storing typed attributes as columns and the free-form fields
// as a JSON blob.
package bundocs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

var createIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_doctype_name
ON documents (doctype, name);`

// Store implements microservice.DocumentStore on a bun database.
type Store struct {
	repo   repository.Repository[*DocumentRow]
	db     *bun.DB
	logger microservice.Logger
}

var _ microservice.DocumentStore = (*Store)(nil)

type Option func(*Store)

func WithLogger(logger microservice.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(db *bun.DB, opts ...Option) *Store {
	repo := repository.NewRepository[*DocumentRow](db, repository.ModelHandlers[*DocumentRow]{
		NewRecord: func() *DocumentRow { return &DocumentRow{} },
		GetID: func(r *DocumentRow) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *DocumentRow, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	s := &Store{
		repo:   repo,
		db:     db,
		logger: microservice.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the documents table and its unique doctype/name index.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*DocumentRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "creating documents table")
	}
	if _, err := s.db.ExecContext(ctx, createIndexSQL); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "creating documents index")
	}
	return nil
}

func (s *Store) List(ctx context.Context, doctype string, filters microservice.Filters, opts microservice.ListOptions) ([]*microservice.Document, error) {
	attrFilters, fieldFilters := splitFilters(filters)

	q := s.db.NewSelect().Model((*DocumentRow)(nil)).
		Where("doc.doctype = ?", doctype)
	for column, value := range attrFilters {
		q = q.Where(fmt.Sprintf("doc.%s = ?", column), value)
	}
	q = q.Order("doc.name ASC")

	var rows []*DocumentRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "listing documents")
	}

	// field filters live inside the JSON column, applied after the scan
	out := make([]*microservice.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDocument()
		if err != nil {
			return nil, err
		}
		if !matchesFields(doc, fieldFilters) {
			continue
		}
		out = append(out, project(doc, opts.Fields))
	}

	if opts.OrderBy != "" && opts.OrderBy != "name" {
		sortByField(out, opts.OrderBy)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*microservice.Document{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, doctype, name string) (*microservice.Document, error) {
	row := new(DocumentRow)
	err := s.db.NewSelect().Model(row).
		Where("doc.doctype = ?", doctype).
		Where("doc.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound(doctype, name)
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "fetching document")
	}
	return row.toDocument()
}

func (s *Store) Insert(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	exists, err := s.Exists(ctx, doc.Doctype, doc.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, microservice.ErrDocumentExists
	}

	row := rowFromDocument(doc)
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		// a concurrent insert can slip past the Exists check and trip the
		// unique index instead
		if isUniqueViolation(err) {
			return nil, microservice.ErrDocumentExists
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "inserting document")
	}
	return created.toDocument()
}

// isUniqueViolation matches the duplicate-key errors sqlite and postgres
// report for the (doctype, name) unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func (s *Store) Update(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	current := new(DocumentRow)
	err := s.db.NewSelect().Model(current).
		Where("doc.doctype = ?", doc.Doctype).
		Where("doc.name = ?", doc.Name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound(doc.Doctype, doc.Name)
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "fetching document for update")
	}

	row := rowFromDocument(doc)
	row.ID = current.ID
	updated, err := s.repo.Update(ctx, row, repository.UpdateByID(current.ID.String()))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "updating document")
	}
	return updated.toDocument()
}

func (s *Store) Delete(ctx context.Context, doctype, name string) error {
	res, err := s.db.NewDelete().Model((*DocumentRow)(nil)).
		Where("doc.doctype = ?", doctype).
		Where("doc.name = ?", name).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "deleting document")
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return notFound(doctype, name)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, doctype string, filters microservice.Filters) (int, error) {
	attrFilters, fieldFilters := splitFilters(filters)

	if len(fieldFilters) > 0 {
		docs, err := s.List(ctx, doctype, filters, microservice.ListOptions{})
		if err != nil {
			return 0, err
		}
		return len(docs), nil
	}

	q := s.db.NewSelect().Model((*DocumentRow)(nil)).
		Where("doc.doctype = ?", doctype)
	for column, value := range attrFilters {
		q = q.Where(fmt.Sprintf("doc.%s = ?", column), value)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryOperation, "counting documents")
	}
	return count, nil
}

func (s *Store) Exists(ctx context.Context, doctype, name string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*DocumentRow)(nil)).
		Where("doc.doctype = ?", doctype).
		Where("doc.name = ?", name).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryOperation, "checking document existence")
	}
	return exists, nil
}

func notFound(doctype, name string) error {
	return errors.New("document not found", errors.CategoryNotFound).
		WithTextCode(microservice.TextCodeDocumentNotFound).
		WithCode(errors.CodeNotFound).
		WithMetadata(map[string]any{
			"doctype": doctype,
			"name":    name,
		})
}

// splitFilters separates filters on typed columns from filters on the
// JSON fields blob.
func splitFilters(filters microservice.Filters) (map[string]any, microservice.Filters) {
	attrs := map[string]any{}
	fields := microservice.Filters{}
	for key, value := range filters {
		switch key {
		case "name", "tenant_id":
			attrs[key] = value
		case "doctype":
			// doctype is always pinned by the caller
		default:
			fields[key] = value
		}
	}
	return attrs, fields
}

func matchesFields(doc *microservice.Document, filters microservice.Filters) bool {
	for key, want := range filters {
		v, ok := doc.Get(key)
		if !ok {
			return false
		}
		wantVal, err := microservice.ValueOf(want)
		if err != nil {
			return false
		}
		if v.Equal(wantVal) {
			continue
		}
		if s, ok := want.(string); ok && fmt.Sprint(v.Interface()) == s {
			continue
		}
		return false
	}
	return true
}

func project(doc *microservice.Document, fields []string) *microservice.Document {
	if len(fields) == 0 {
		return doc
	}
	keep := map[string]bool{}
	for _, f := range fields {
		keep[f] = true
	}
	for _, k := range doc.Fields.Names() {
		if !keep[k] {
			doc.Fields.Delete(k)
		}
	}
	return doc
}

func sortByField(docs []*microservice.Document, field string) {
	desc := false
	if strings.HasSuffix(field, " desc") {
		field = strings.TrimSuffix(field, " desc")
		desc = true
	}
	less := func(i, j int) bool {
		vi, _ := docs[i].GetString(field)
		vj, _ := docs[j].GetString(field)
		if vi == vj {
			return docs[i].Name < docs[j].Name
		}
		if desc {
			return vi > vj
		}
		return vi < vj
	}
	sort.SliceStable(docs, less)
}
