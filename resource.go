package microservice

import (
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the resource
// controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// ResourceController exposes tenant-scoped CRUD over HTTP for a single
// doctype. Handlers resolve the session from the request context, so the
// routes must sit behind a SessionGuard.
type ResourceController struct {
	doctype string
	db      *TenantDB
	mapper  *ErrorMapper
	logger  Logger
}

type ResourceOption func(*ResourceController)

func WithResourceLogger(logger Logger) ResourceOption {
	return func(c *ResourceController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithResourceErrorMapper(mapper *ErrorMapper) ResourceOption {
	return func(c *ResourceController) {
		if mapper != nil {
			c.mapper = mapper
		}
	}
}

func NewResourceController(doctype string, db *TenantDB, opts ...ResourceOption) *ResourceController {
	c := &ResourceController{
		doctype: doctype,
		db:      db,
		mapper:  NewErrorMapper(),
		logger:  defLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterResource mounts CRUD routes for each doctype under the
// registrar: GET/POST on /{slug} and GET/PUT/DELETE on /{slug}/:name.
func RegisterResource(registrar RouteRegistrar, db *TenantDB, doctypes []string, opts ...ResourceOption) {
	for _, doctype := range doctypes {
		c := NewResourceController(doctype, db, opts...)
		slug := DoctypeSlug(doctype)

		registrar.Get("/"+slug, c.List)
		registrar.Post("/"+slug, c.Create)
		registrar.Get("/"+slug+"/:name", c.Read)
		registrar.Put("/"+slug+"/:name", c.Update)
		registrar.Delete("/"+slug+"/:name", c.Delete)
	}
}

// DoctypeSlug turns a doctype into its URL segment, "Sales Order" ->
// "sales-order".
func DoctypeSlug(doctype string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(doctype), " ", "-"))
}

// reserved query parameters that never become field filters
const (
	queryLimit   = "limit"
	queryOffset  = "offset"
	queryOrderBy = "order_by"
	queryFields  = "fields"
)

// List answers GET /{slug}. Query parameters become field filters except
// for the paging controls.
func (c *ResourceController) List(ctx router.Context) error {
	filters := Filters{}
	opts := ListOptions{}

	for key, value := range ctx.Queries() {
		switch key {
		case queryLimit:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				opts.Limit = n
			}
		case queryOffset:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				opts.Offset = n
			}
		case queryOrderBy:
			opts.OrderBy = value
		case queryFields:
			opts.Fields = strings.Split(value, ",")
		default:
			filters[key] = value
		}
	}

	docs, err := c.db.List(ctx.Context(), c.doctype, filters, opts)
	if err != nil {
		return c.fail(ctx, err)
	}
	if docs == nil {
		docs = []*Document{}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"data":    docs,
		"doctype": c.doctype,
	})
}

// Read answers GET /{slug}/:name.
func (c *ResourceController) Read(ctx router.Context) error {
	doc, err := c.db.Get(ctx.Context(), c.doctype, ctx.Param("name"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, doc)
}

// Create answers POST /{slug} with the created document and 201.
func (c *ResourceController) Create(ctx router.Context) error {
	payload := map[string]any{}
	if err := ctx.Bind(&payload); err != nil {
		return c.fail(ctx, ValidationFailed("request body must be a JSON object"))
	}
	if err := validation.Validate(payload, validation.Required); err != nil {
		return c.fail(ctx, ValidationFailed("request body must not be empty"))
	}

	fields, err := FieldsFromMap(payload)
	if err != nil {
		return c.fail(ctx, err)
	}

	doc := NewDocument(c.doctype)
	doc.Fields = fields

	created, err := c.db.Insert(ctx.Context(), doc)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusCreated, created)
}

// Update answers PUT /{slug}/:name with the updated document.
func (c *ResourceController) Update(ctx router.Context) error {
	payload := map[string]any{}
	if err := ctx.Bind(&payload); err != nil {
		return c.fail(ctx, ValidationFailed("request body must be a JSON object"))
	}
	if err := validation.Validate(payload, validation.Required); err != nil {
		return c.fail(ctx, ValidationFailed("request body must not be empty"))
	}

	fields, err := FieldsFromMap(payload)
	if err != nil {
		return c.fail(ctx, err)
	}

	doc := NewDocument(c.doctype)
	doc.Name = ctx.Param("name")
	doc.Fields = fields

	updated, err := c.db.Update(ctx.Context(), doc)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, updated)
}

// Delete answers DELETE /{slug}/:name.
func (c *ResourceController) Delete(ctx router.Context) error {
	name := ctx.Param("name")
	if err := c.db.Delete(ctx.Context(), c.doctype, name); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]any{
		"status":  "ok",
		"doctype": c.doctype,
		"name":    name,
	})
}

func (c *ResourceController) fail(ctx router.Context, err error) error {
	status, envelope := c.mapper.Map(err)
	if status >= 500 {
		c.logger.Error("resource %s failed: %v", c.doctype, err)
	}
	return ctx.JSON(status, envelope)
}
