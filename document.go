package microservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-errors"
)

// Kind tags the runtime type of a field value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a tagged field value. Documents carry arbitrary named fields, but
// every value is one of a closed set of kinds so data movement stays
// type-checked without a schema.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Int(i int) Value { return Value{kind: KindNumber, num: float64(i)} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// ValueOf converts a plain Go value (typically decoded JSON) into a Value.
// Nested objects are not representable as field values and fail with a
// validation error.
func ValueOf(raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case nil:
		return String(""), nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Value{}, ValidationFailed(fmt.Sprintf("invalid number %q", v.String()))
		}
		return Number(f), nil
	case time.Time:
		return Time(v), nil
	case []any:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			val, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, val)
		}
		return List(items...), nil
	case []string:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			items = append(items, String(item))
		}
		return List(items...), nil
	default:
		return Value{}, ValidationFailed(fmt.Sprintf("unsupported field value of type %T", raw))
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsZero() bool { return v.kind == KindInvalid }

// AsString returns the string content. Times render as RFC 3339.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindTime:
		return v.t.Format(time.RFC3339), true
	default:
		return "", false
	}
}

func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsTime returns the timestamp content. Strings holding an RFC 3339
// timestamp parse transparently, which is how timestamps round-trip
// through JSON bodies.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		if t, err := time.Parse(time.RFC3339, v.str); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// Interface returns the canonical plain-Go representation, suitable for
// filter comparison and store serialization.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal compares canonical representations, so Time(...) and the
// equivalent RFC 3339 string compare equal.
func (v Value) Equal(other Value) bool {
	return valueEqualAny(v, other.Interface())
}

func valueEqualAny(v Value, want any) bool {
	switch v.kind {
	case KindList:
		items, ok := want.([]any)
		if !ok || len(items) != len(v.list) {
			return false
		}
		for i, item := range v.list {
			if !valueEqualAny(item, items[i]) {
				return false
			}
		}
		return true
	default:
		got := v.Interface()
		switch w := want.(type) {
		case int:
			return got == float64(w)
		case int64:
			return got == float64(w)
		case float32:
			return got == float64(w)
		default:
			return got == want
		}
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Fields is an insertion-ordered field-name to Value mapping.
type Fields struct {
	keys   []string
	values map[string]Value
}

func NewFields() *Fields {
	return &Fields{values: map[string]Value{}}
}

// FieldsFromMap builds Fields from a plain map, in sorted key order for
// determinism. Unsupported value types fail with a validation error.
func FieldsFromMap(m map[string]any) (*Fields, error) {
	f := NewFields()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, fmt.Sprintf("field %q", k)).
				WithTextCode(TextCodeValidationFailure).
				WithCode(errors.CodeBadRequest)
		}
		f.Set(k, v)
	}
	return f, nil
}

func (f *Fields) Set(name string, v Value) *Fields {
	if f.values == nil {
		f.values = map[string]Value{}
	}
	if _, ok := f.values[name]; !ok {
		f.keys = append(f.keys, name)
	}
	f.values[name] = v
	return f
}

func (f *Fields) Get(name string) (Value, bool) {
	if f == nil || f.values == nil {
		return Value{}, false
	}
	v, ok := f.values[name]
	return v, ok
}

func (f *Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

func (f *Fields) Delete(name string) {
	if f == nil || f.values == nil {
		return
	}
	if _, ok := f.values[name]; !ok {
		return
	}
	delete(f.values, name)
	for i, k := range f.keys {
		if k == name {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Names returns field names in insertion order.
func (f *Fields) Names() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

func (f *Fields) Clone() *Fields {
	out := NewFields()
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out.Set(k, f.values[k])
	}
	return out
}

// Map returns the plain-Go representation of all fields.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out[k] = f.values[k].Interface()
	}
	return out
}

func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v, _ := f.Get(k)
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ValidationFailed("fields must be a JSON object")
	}

	*f = *NewFields()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := ValueOf(raw)
		if err != nil {
			return errors.Wrap(err, errors.CategoryValidation, fmt.Sprintf("field %q", key)).
				WithTextCode(TextCodeValidationFailure).
				WithCode(errors.CodeBadRequest)
		}
		f.Set(key, v)
	}

	_, err = dec.Token()
	return err
}

// Document is a named record of a given doctype. The backing store owns
// persistence; this layer only mediates access. TenantID is set exactly
// once, at insert, from the active session (tenant pinning).
type Document struct {
	Doctype  string
	Name     string
	TenantID string
	Fields   *Fields
}

func NewDocument(doctype string) *Document {
	return &Document{Doctype: doctype, Fields: NewFields()}
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Doctype:  d.Doctype,
		Name:     d.Name,
		TenantID: d.TenantID,
		Fields:   d.Fields.Clone(),
	}
}

func (d *Document) Set(name string, v Value) *Document {
	if d.Fields == nil {
		d.Fields = NewFields()
	}
	d.Fields.Set(name, v)
	return d
}

func (d *Document) Get(name string) (Value, bool) {
	return d.Fields.Get(name)
}

func (d *Document) GetString(name string) (string, bool) {
	v, ok := d.Get(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (d *Document) GetNumber(name string) (float64, bool) {
	v, ok := d.Get(name)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

func (d *Document) GetBool(name string) (bool, bool) {
	v, ok := d.Get(name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (d *Document) GetTime(name string) (time.Time, bool) {
	v, ok := d.Get(name)
	if !ok {
		return time.Time{}, false
	}
	return v.AsTime()
}

func (d *Document) GetList(name string) ([]Value, bool) {
	v, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	return v.AsList()
}

const (
	attrDoctype = "doctype"
	attrName    = "name"
)

// MarshalJSON renders the document as a flat object: doctype, name,
// tenant_id, then the fields in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, `"doctype":%s`, mustJSON(d.Doctype))
	fmt.Fprintf(&buf, `,"name":%s`, mustJSON(d.Name))
	fmt.Fprintf(&buf, `,"tenant_id":%s`, mustJSON(d.TenantID))
	for _, k := range d.Fields.Names() {
		if k == attrDoctype || k == attrName || k == "tenant_id" {
			continue
		}
		v, _ := d.Fields.Get(k)
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `,%s:%s`, mustJSON(k), val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	fields := NewFields()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	doc := NewDocument("")
	for _, k := range fields.Names() {
		v, _ := fields.Get(k)
		switch k {
		case attrDoctype:
			doc.Doctype, _ = v.AsString()
		case attrName:
			doc.Name, _ = v.AsString()
		case "tenant_id":
			doc.TenantID, _ = v.AsString()
		default:
			doc.Fields.Set(k, v)
		}
	}
	*d = *doc
	return nil
}

func mustJSON(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}
