package microservice

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-errors"
)

// Event identifies a point in a document's write lifecycle.
type Event string

const (
	EventBeforeValidate Event = "before_validate"
	EventValidate       Event = "validate"
	EventBeforeInsert   Event = "before_insert"
	EventAfterInsert    Event = "after_insert"
	EventBeforeUpdate   Event = "before_update"
	EventAfterUpdate    Event = "after_update"
	EventBeforeSave     Event = "before_save"
	EventAfterSave      Event = "after_save"
	EventBeforeDelete   Event = "before_delete"
	EventAfterDelete    Event = "after_delete"
)

// WildcardDoctype registers a hook for every doctype. Wildcard hooks run
// before doctype-specific hooks on dispatch.
const WildcardDoctype = "*"

var knownEvents = map[Event]bool{
	EventBeforeValidate: true,
	EventValidate:       true,
	EventBeforeInsert:   true,
	EventAfterInsert:    true,
	EventBeforeUpdate:   true,
	EventAfterUpdate:    true,
	EventBeforeSave:     true,
	EventAfterSave:      true,
	EventBeforeDelete:   true,
	EventAfterDelete:    true,
}

// HookFunc observes or mutates a document at a lifecycle event. Returning
// an error aborts the operation; hooks registered later do not run.
type HookFunc func(ctx context.Context, doc *Document) error

// Hooks is a registry of lifecycle hooks keyed by doctype and event.
// Registration happens during setup; Freeze seals the registry before the
// first dispatch so concurrent reads need no locking discipline from
// callers.
type Hooks struct {
	mu     sync.Mutex
	frozen atomic.Bool
	table  map[string]map[Event][]HookFunc
	claims map[string]string
	logger Logger
}

type HookOption func(*Hooks)

func WithHookLogger(logger Logger) HookOption {
	return func(h *Hooks) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHooks(opts ...HookOption) *Hooks {
	h := &Hooks{
		table:  map[string]map[Event][]HookFunc{},
		claims: map[string]string{},
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register appends fn to the hook chain for doctype and event. Hooks run
// in registration order. Registering on a frozen registry fails.
func (h *Hooks) Register(doctype string, event Event, fn HookFunc) error {
	if h.frozen.Load() {
		return errors.New("hook registry is frozen", errors.CategoryOperation).
			WithTextCode(TextCodeHookFailure)
	}
	if doctype == "" {
		return errors.New("doctype is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	if fn == nil {
		return errors.New("hook func is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	if !knownEvents[event] {
		return errors.New(fmt.Sprintf("unknown lifecycle event %q", event), errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.table[doctype] == nil {
		h.table[doctype] = map[Event][]HookFunc{}
	}
	h.table[doctype][event] = append(h.table[doctype][event], fn)
	h.logger.Debug("hook registered doctype=%s event=%s fn=%s", doctype, event, funcName(fn))
	return nil
}

// Freeze seals the registry; further Register calls fail. Safe to call
// more than once.
func (h *Hooks) Freeze() {
	h.frozen.Store(true)
}

// Dispatch runs the hooks for event against doc: wildcard hooks first, in
// registration order, then hooks registered for doc's doctype. The first
// hook error stops the chain and is returned to the caller; classified
// errors pass through unchanged, plain errors are wrapped as operation
// failures.
func (h *Hooks) Dispatch(ctx context.Context, event Event, doc *Document) error {
	for _, fn := range h.chain(doc.Doctype, event) {
		if err := fn(ctx, doc); err != nil {
			h.logger.Debug("hook aborted doctype=%s event=%s: %v", doc.Doctype, event, err)
			var rich *errors.Error
			if errors.As(err, &rich) {
				return err
			}
			return HookFailed(err, doc.Doctype, event)
		}
	}
	return nil
}

func (h *Hooks) chain(doctype string, event Event) []HookFunc {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []HookFunc
	if byEvent, ok := h.table[WildcardDoctype]; ok {
		out = append(out, byEvent[event]...)
	}
	if doctype != WildcardDoctype {
		if byEvent, ok := h.table[doctype]; ok {
			out = append(out, byEvent[event]...)
		}
	}
	return out
}

// Registered reports how many hooks are bound to doctype and event,
// wildcard hooks excluded.
func (h *Hooks) Registered(doctype string, event Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if byEvent, ok := h.table[doctype]; ok {
		return len(byEvent[event])
	}
	return 0
}

// List describes the registry as doctype -> event -> hook names, for
// startup logging and debugging.
func (h *Hooks) List() map[string]map[string][]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := map[string]map[string][]string{}
	for doctype, byEvent := range h.table {
		entry := map[string][]string{}
		for event, fns := range byEvent {
			names := make([]string, 0, len(fns))
			for _, fn := range fns {
				names = append(names, funcName(fn))
			}
			entry[string(event)] = names
		}
		out[doctype] = entry
	}
	return out
}

// Doctypes returns the doctypes with at least one registered hook, sorted.
func (h *Hooks) Doctypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.table))
	for doctype := range h.table {
		out = append(out, doctype)
	}
	sort.Strings(out)
	return out
}

// claim records that a controller owns a doctype's hooks. A second claim
// for the same doctype fails, so duplicate controller registrations are
// caught at startup rather than shadowing each other silently.
func (h *Hooks) claim(doctype, owner string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.claims[doctype]; ok {
		return errors.New(
			fmt.Sprintf("doctype %q already has controller %s", doctype, prev),
			errors.CategoryConflict,
		).WithCode(errors.CodeConflict)
	}
	h.claims[doctype] = owner
	return nil
}

func funcName(fn HookFunc) string {
	if fn == nil {
		return "<nil>"
	}
	pc := reflect.ValueOf(fn).Pointer()
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return "<unknown>"
}
