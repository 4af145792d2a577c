package bundocs

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

// DocumentRow is the persisted shape of a document. Typed attributes
// (doctype, name, tenant) live in dedicated columns so queries can index
// them; the free-form fields travel as a JSON column.
type DocumentRow struct {
	bun.BaseModel `bun:"table:documents,alias:doc"`

	ID       uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Doctype  string         `bun:"doctype,notnull" json:"doctype"`
	Name     string         `bun:"name,notnull" json:"name"`
	TenantID string         `bun:"tenant_id,notnull" json:"tenant_id"`
	Fields   map[string]any `bun:"fields,type:jsonb" json:"fields,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func rowFromDocument(doc *microservice.Document) *DocumentRow {
	return &DocumentRow{
		Doctype:  doc.Doctype,
		Name:     doc.Name,
		TenantID: doc.TenantID,
		Fields:   doc.Fields.Map(),
	}
}

func (r *DocumentRow) toDocument() (*microservice.Document, error) {
	fields, err := microservice.FieldsFromMap(r.Fields)
	if err != nil {
		return nil, err
	}
	return &microservice.Document{
		Doctype:  r.Doctype,
		Name:     r.Name,
		TenantID: r.TenantID,
		Fields:   fields,
	}, nil
}
