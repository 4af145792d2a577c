// Package memory provides an in-memory document store, used by tests and
// examples. It implements microservice.DocumentStore with the same
// not-found and conflict semantics as the persistent stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-errors"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

// Store keeps documents in process memory, keyed by doctype then name.
// All methods are safe for concurrent use. Documents are deep-copied on
// the way in and out so callers can never mutate stored state.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]*microservice.Document
}

func New() *Store {
	return &Store{
		data: map[string]map[string]*microservice.Document{},
	}
}

func (s *Store) List(ctx context.Context, doctype string, filters microservice.Filters, opts microservice.ListOptions) ([]*microservice.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*microservice.Document
	for _, doc := range s.data[doctype] {
		if matches(doc, filters) {
			out = append(out, project(doc.Clone(), opts.Fields))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if opts.OrderBy != "" {
			vi, _ := out[i].GetString(opts.OrderBy)
			vj, _ := out[j].GetString(opts.OrderBy)
			if vi != vj {
				return vi < vj
			}
		}
		return out[i].Name < out[j].Name
	})

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
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[doctype][name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	return doc.Clone(), nil
}

func (s *Store) Insert(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[doc.Doctype][doc.Name]; ok {
		return nil, microservice.ErrDocumentExists
	}
	if s.data[doc.Doctype] == nil {
		s.data[doc.Doctype] = map[string]*microservice.Document{}
	}
	s.data[doc.Doctype][doc.Name] = doc.Clone()
	return doc.Clone(), nil
}

func (s *Store) Update(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[doc.Doctype][doc.Name]; !ok {
		return nil, notFound(doc.Doctype, doc.Name)
	}
	s.data[doc.Doctype][doc.Name] = doc.Clone()
	return doc.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, doctype, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[doctype][name]; !ok {
		return notFound(doctype, name)
	}
	delete(s.data[doctype], name)
	return nil
}

func (s *Store) Count(ctx context.Context, doctype string, filters microservice.Filters) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, doc := range s.data[doctype] {
		if matches(doc, filters) {
			count++
		}
	}
	return count, nil
}

func (s *Store) Exists(ctx context.Context, doctype, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[doctype][name]
	return ok, nil
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

func matches(doc *microservice.Document, filters microservice.Filters) bool {
	for key, want := range filters {
		switch key {
		case "name":
			if s, ok := want.(string); !ok || doc.Name != s {
				return false
			}
		case "doctype":
			if s, ok := want.(string); !ok || doc.Doctype != s {
				return false
			}
		case "tenant_id":
			if s, ok := want.(string); !ok || doc.TenantID != s {
				return false
			}
		default:
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
			// query-string filters arrive as strings; compare loosely
			if s, ok := want.(string); ok && fmt.Sprint(v.Interface()) == s {
				continue
			}
			return false
		}
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
