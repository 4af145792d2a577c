package microservice_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

// MockResolver implements microservice.IdentityResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, credential string) (*microservice.SessionContext, error) {
	args := m.Called(ctx, credential)
	session, _ := args.Get(0).(*microservice.SessionContext)
	return session, args.Error(1)
}

// MockStore implements microservice.DocumentStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, doctype string, filters microservice.Filters, opts microservice.ListOptions) ([]*microservice.Document, error) {
	args := m.Called(ctx, doctype, filters, opts)
	docs, _ := args.Get(0).([]*microservice.Document)
	return docs, args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, doctype, name string) (*microservice.Document, error) {
	args := m.Called(ctx, doctype, name)
	doc, _ := args.Get(0).(*microservice.Document)
	return doc, args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	args := m.Called(ctx, doc)
	created, _ := args.Get(0).(*microservice.Document)
	return created, args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, doc *microservice.Document) (*microservice.Document, error) {
	args := m.Called(ctx, doc)
	updated, _ := args.Get(0).(*microservice.Document)
	return updated, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, doctype, name string) error {
	args := m.Called(ctx, doctype, name)
	return args.Error(0)
}

func (m *MockStore) Count(ctx context.Context, doctype string, filters microservice.Filters) (int, error) {
	args := m.Called(ctx, doctype, filters)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Exists(ctx context.Context, doctype, name string) (bool, error) {
	args := m.Called(ctx, doctype, name)
	return args.Bool(0), args.Error(1)
}

// sessionCtx builds a context carrying an active session, the way the
// guard middleware would.
func sessionCtx(userID, tenantID string) context.Context {
	return microservice.WithSession(context.Background(), &microservice.SessionContext{
		UserID:   userID,
		TenantID: tenantID,
	})
}
