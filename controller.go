package microservice

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-errors"
)

// Controller capability interfaces. A controller is any value implementing
// one or more of these; RegisterControllers discovers the capabilities by
// type assertion and binds each to its lifecycle event. Implementing none
// of them is a registration error, since such a controller can never run.

type DocumentValidator interface {
	Validate(ctx context.Context, doc *Document) error
}

type BeforeValidator interface {
	BeforeValidate(ctx context.Context, doc *Document) error
}

type BeforeInserter interface {
	BeforeInsert(ctx context.Context, doc *Document) error
}

type AfterInserter interface {
	AfterInsert(ctx context.Context, doc *Document) error
}

type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, doc *Document) error
}

type AfterUpdater interface {
	AfterUpdate(ctx context.Context, doc *Document) error
}

type BeforeSaver interface {
	BeforeSave(ctx context.Context, doc *Document) error
}

type AfterSaver interface {
	AfterSave(ctx context.Context, doc *Document) error
}

type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, doc *Document) error
}

type AfterDeleter interface {
	AfterDelete(ctx context.Context, doc *Document) error
}

// RegisterControllers binds each controller's capabilities to its doctype's
// lifecycle events. Doctypes register in sorted order so startup is
// deterministic. Registering two controllers for the same doctype fails.
func RegisterControllers(hooks *Hooks, controllers map[string]any) error {
	doctypes := make([]string, 0, len(controllers))
	for doctype := range controllers {
		doctypes = append(doctypes, doctype)
	}
	sort.Strings(doctypes)

	for _, doctype := range doctypes {
		if err := RegisterController(hooks, doctype, controllers[doctype]); err != nil {
			return err
		}
	}
	return nil
}

// RegisterController binds a single controller to a doctype.
func RegisterController(hooks *Hooks, doctype string, controller any) error {
	if doctype == "" {
		return errors.New("doctype is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	if controller == nil {
		return errors.New(
			fmt.Sprintf("controller for doctype %q is nil", doctype),
			errors.CategoryBadInput,
		).WithCode(errors.CodeBadRequest)
	}

	if err := hooks.claim(doctype, fmt.Sprintf("%T", controller)); err != nil {
		return err
	}

	bound := 0
	bind := func(event Event, fn HookFunc) error {
		if err := hooks.Register(doctype, event, fn); err != nil {
			return err
		}
		bound++
		return nil
	}

	if c, ok := controller.(BeforeValidator); ok {
		if err := bind(EventBeforeValidate, c.BeforeValidate); err != nil {
			return err
		}
	}
	if c, ok := controller.(DocumentValidator); ok {
		if err := bind(EventValidate, c.Validate); err != nil {
			return err
		}
	}
	if c, ok := controller.(BeforeInserter); ok {
		if err := bind(EventBeforeInsert, c.BeforeInsert); err != nil {
			return err
		}
	}
	if c, ok := controller.(AfterInserter); ok {
		if err := bind(EventAfterInsert, c.AfterInsert); err != nil {
			return err
		}
	}
	if c, ok := controller.(BeforeUpdater); ok {
		if err := bind(EventBeforeUpdate, c.BeforeUpdate); err != nil {
			return err
		}
	}
	if c, ok := controller.(AfterUpdater); ok {
		if err := bind(EventAfterUpdate, c.AfterUpdate); err != nil {
			return err
		}
	}
	if c, ok := controller.(BeforeSaver); ok {
		if err := bind(EventBeforeSave, c.BeforeSave); err != nil {
			return err
		}
	}
	if c, ok := controller.(AfterSaver); ok {
		if err := bind(EventAfterSave, c.AfterSave); err != nil {
			return err
		}
	}
	if c, ok := controller.(BeforeDeleter); ok {
		if err := bind(EventBeforeDelete, c.BeforeDelete); err != nil {
			return err
		}
	}
	if c, ok := controller.(AfterDeleter); ok {
		if err := bind(EventAfterDelete, c.AfterDelete); err != nil {
			return err
		}
	}

	if bound == 0 {
		return errors.New(
			fmt.Sprintf("controller %T implements no lifecycle methods", controller),
			errors.CategoryBadInput,
		).WithCode(errors.CodeBadRequest)
	}
	return nil
}
