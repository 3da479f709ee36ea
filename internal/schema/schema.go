package schema

import (
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind classifies how a declared field stores and validates values.
type Kind int

const (
	// Scalar stores a single plain value; container values are rejected.
	Scalar Kind = iota
	// ScalarUpcase is Scalar with string values forced to upper case.
	ScalarUpcase
	// ScalarDowncase is Scalar with string values forced to lower case.
	ScalarDowncase
	// Any stores a value of any shape with no checks.
	Any
	// Sequence stores an ordered list, copied defensively on set.
	Sequence
	// Mapping stores a string-keyed map, copied defensively on set.
	Mapping
	// Typed stores a single value that must satisfy the declared Elem type.
	Typed
)

// Field declares one named attribute of a record type.
type Field struct {
	Name string
	Kind Kind
	// Elem constrains element values for Sequence and Mapping kinds and
	// the stored value for Typed. Nil means unconstrained.
	Elem reflect.Type
	// Default, when non-nil, seeds new records before caller values apply.
	Default any
}

// Schema is an indexed set of field declarations, built once per record
// type. Lookup is case-insensitive; stored keys keep the declared spelling.
type Schema struct {
	fields []Field
	byName map[string]*Field
}

// ErrInvalidArgument reports a value that violates a field's declared
// shape or type constraint.
var ErrInvalidArgument = eris.New("invalid argument")

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// New builds a Schema from field declarations. Declaring the same name
// twice (case-insensitively) is a programming error and panics.
func New(fields ...Field) *Schema {
	s := &Schema{
		fields: fields,
		byName: make(map[string]*Field, len(fields)),
	}
	for i := range s.fields {
		f := &s.fields[i]
		key := strings.ToLower(f.Name)
		if _, dup := s.byName[key]; dup {
			panic("schema: duplicate field " + f.Name)
		}
		s.byName[key] = f
	}
	return s
}

// Lookup returns the declaration for name, matched case-insensitively.
func (s *Schema) Lookup(name string) (*Field, bool) {
	f, ok := s.byName[strings.ToLower(name)]
	return f, ok
}

// Fields returns the declarations in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Record is an instance container over a Schema. Values are keyed by the
// declared field spelling regardless of the spelling used to set them.
type Record struct {
	schema *Schema
	values map[string]any
}

// NewRecord constructs a record, seeding field defaults first and then
// applying the supplied values through the normal setter checks. Keys
// with no matching field declaration are silently ignored; callers that
// want them surfaced should use NewRecordStrict.
func (s *Schema) NewRecord(values map[string]any) (*Record, error) {
	r := &Record{schema: s, values: make(map[string]any)}
	for i := range s.fields {
		f := &s.fields[i]
		if f.Default == nil {
			continue
		}
		if err := r.Set(f.Name, f.Default); err != nil {
			return nil, eris.Wrapf(err, "schema: default for %s", f.Name)
		}
	}
	for key, v := range values {
		if _, ok := s.Lookup(key); !ok {
			continue
		}
		if err := r.Set(key, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRecordStrict is NewRecord except that unknown keys are an error.
func (s *Schema) NewRecordStrict(values map[string]any) (*Record, error) {
	for key := range values {
		if _, ok := s.Lookup(key); !ok {
			return nil, eris.Wrapf(ErrInvalidArgument, "schema: unknown field %q", key)
		}
	}
	return s.NewRecord(values)
}

// Set stores a value on a declared field, applying the field kind's
// validation and normalization. For Sequence fields the value must be a
// []any (use SetSeq for the variadic form); for Mapping fields a
// map[string]any or nil (nil clears the field).
func (r *Record) Set(name string, value any) error {
	f, ok := r.schema.Lookup(name)
	if !ok {
		return eris.Wrapf(ErrInvalidArgument, "schema: unknown field %q", name)
	}

	switch f.Kind {
	case Scalar, ScalarUpcase, ScalarDowncase:
		if isContainer(value) {
			return eris.Wrapf(ErrInvalidArgument,
				"schema: field %s takes a plain scalar, got %T", f.Name, value)
		}
		if s, isStr := value.(string); isStr {
			switch f.Kind {
			case ScalarUpcase:
				value = upper.String(s)
			case ScalarDowncase:
				value = lower.String(s)
			}
		} else if f.Kind == ScalarUpcase || f.Kind == ScalarDowncase {
			return eris.Wrapf(ErrInvalidArgument,
				"schema: field %s normalizes strings only, got %T", f.Name, value)
		}
		r.values[f.Name] = value

	case Any:
		r.values[f.Name] = value

	case Sequence:
		elems, ok := value.([]any)
		if !ok {
			return eris.Wrapf(ErrInvalidArgument,
				"schema: field %s takes a sequence, got %T", f.Name, value)
		}
		if _, err := r.SetSeq(f.Name, elems...); err != nil {
			return err
		}

	case Mapping:
		if value == nil {
			delete(r.values, f.Name)
			return nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return eris.Wrapf(ErrInvalidArgument,
				"schema: field %s takes a mapping, got %T", f.Name, value)
		}
		return r.SetMap(f.Name, m)

	case Typed:
		if err := checkElem(f, value); err != nil {
			return err
		}
		r.values[f.Name] = value
	}

	return nil
}

// SetSeq replaces a Sequence field's stored list with the given elements
// and returns the stored copy. The internal list is distinct from the
// caller's arguments.
func (r *Record) SetSeq(name string, elems ...any) ([]any, error) {
	f, ok := r.schema.Lookup(name)
	if !ok || f.Kind != Sequence {
		return nil, eris.Wrapf(ErrInvalidArgument, "schema: %q is not a sequence field", name)
	}
	for _, e := range elems {
		if err := checkElem(f, e); err != nil {
			return nil, err
		}
	}
	stored := make([]any, len(elems))
	copy(stored, elems)
	r.values[f.Name] = stored
	return stored, nil
}

// SetMap replaces a Mapping field's stored map. It accepts a single
// map[string]any, a flat key/value argument list, or a single nil, which
// clears the field to unset rather than raising an error.
func (r *Record) SetMap(name string, args ...any) error {
	f, ok := r.schema.Lookup(name)
	if !ok || f.Kind != Mapping {
		return eris.Wrapf(ErrInvalidArgument, "schema: %q is not a mapping field", name)
	}

	if len(args) == 1 {
		switch m := args[0].(type) {
		case nil:
			delete(r.values, f.Name)
			return nil
		case map[string]any:
			stored := make(map[string]any, len(m))
			for k, v := range m {
				if err := checkElem(f, v); err != nil {
					return err
				}
				stored[k] = v
			}
			r.values[f.Name] = stored
			return nil
		}
	}

	if len(args)%2 != 0 {
		return eris.Wrapf(ErrInvalidArgument,
			"schema: field %s key/value list has odd length %d", f.Name, len(args))
	}
	stored := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			return eris.Wrapf(ErrInvalidArgument,
				"schema: field %s key at position %d is %T, want string", f.Name, i, args[i])
		}
		if err := checkElem(f, args[i+1]); err != nil {
			return err
		}
		stored[k] = args[i+1]
	}
	r.values[f.Name] = stored
	return nil
}

// Get returns the stored value for a field and whether it has been set.
func (r *Record) Get(name string) (any, bool) {
	f, ok := r.schema.Lookup(name)
	if !ok {
		return nil, false
	}
	v, set := r.values[f.Name]
	return v, set
}

// Seq returns a copy of a Sequence field's stored list, or nil if unset.
func (r *Record) Seq(name string) []any {
	v, ok := r.Get(name)
	if !ok {
		return nil
	}
	stored, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]any, len(stored))
	copy(out, stored)
	return out
}

// Map returns a copy of a Mapping field's stored map, or nil if unset.
func (r *Record) Map(name string) map[string]any {
	v, ok := r.Get(name)
	if !ok {
		return nil
	}
	stored, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(stored))
	for k, val := range stored {
		out[k] = val
	}
	return out
}

// Unset clears a field back to the unset state.
func (r *Record) Unset(name string) {
	if f, ok := r.schema.Lookup(name); ok {
		delete(r.values, f.Name)
	}
}

// checkElem validates a value against a field's Elem constraint.
func checkElem(f *Field, v any) error {
	if f.Elem == nil {
		return nil
	}
	if v == nil {
		return eris.Wrapf(ErrInvalidArgument,
			"schema: field %s wants %s, got nil", f.Name, f.Elem)
	}
	t := reflect.TypeOf(v)
	if f.Elem.Kind() == reflect.Interface {
		if t.Implements(f.Elem) {
			return nil
		}
	} else if t.AssignableTo(f.Elem) {
		return nil
	}
	return eris.Wrapf(ErrInvalidArgument,
		"schema: field %s wants %s, got %s", f.Name, f.Elem, t)
}

// isContainer reports whether a value is a container or reference shape
// rather than a plain scalar.
func isContainer(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer,
		reflect.Chan, reflect.Func:
		return true
	}
	return false
}
