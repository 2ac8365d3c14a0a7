package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Kind selects the coercion applied to a raw configuration value.
type Kind int

// Supported field kinds.
const (
	KindString Kind = iota
	KindInt
	KindBool
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field declares one named configuration value and where it comes from.
type Field struct {
	Name     string
	Source   string
	Required bool
	Default  *string
	Kind     Kind
}

// Schema is an ordered list of fields.
type Schema []Field

// Environment is a read-only snapshot of string settings keyed by name.
type Environment map[string]string

// EnvironFromOS snapshots the process environment.
func EnvironFromOS() Environment {
	env := make(Environment)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}

// Required declares a mandatory field read from source.
func Required(name, source string, kind Kind) Field {
	return Field{Name: name, Source: source, Required: true, Kind: kind}
}

// Optional declares a field that resolves to absent when unset.
func Optional(name, source string, kind Kind) Field {
	return Field{Name: name, Source: source, Kind: kind}
}

// WithDefault declares a field that falls back to def when unset.
func WithDefault(name, source string, kind Kind, def string) Field {
	return Field{Name: name, Source: source, Required: true, Default: &def, Kind: kind}
}

// MissingError reports a required field with no override, environment value
// or default.
type MissingError struct {
	Field  string
	Source string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing configuration %q (set %s)", e.Field, e.Source)
}

// InvalidError reports a raw value that could not be coerced to the field's kind.
type InvalidError struct {
	Field string
	Value string
	Kind  Kind
	Err   error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration %q: cannot parse %q as %s: %v", e.Field, e.Value, e.Kind, e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// Resolved holds the typed values of a schema for one run. It is immutable
// once returned by Resolve.
type Resolved struct {
	values map[string]any
}

// Resolve maps each field of schema to a typed value. Precedence is
// override, then env[field.Source], then the declared default.
func Resolve(schema Schema, env Environment, overrides map[string]string) (Resolved, error) {
	values := make(map[string]any, len(schema))
	for _, f := range schema {
		raw, ok := overrides[f.Name]
		if !ok {
			raw, ok = env[f.Source]
		}
		if !ok && f.Default != nil {
			raw, ok = *f.Default, true
		}
		if !ok {
			if f.Required {
				return Resolved{}, &MissingError{Field: f.Name, Source: f.Source}
			}
			continue
		}

		v, err := coerce(f.Kind, raw)
		if err != nil {
			return Resolved{}, &InvalidError{Field: f.Name, Value: raw, Kind: f.Kind, Err: err}
		}
		values[f.Name] = v
	}
	return Resolved{values: values}, nil
}

func coerce(kind Kind, raw string) (any, error) {
	switch kind {
	case KindString:
		return raw, nil
	case KindInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case KindBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case KindDuration:
		return time.ParseDuration(strings.TrimSpace(raw))
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}

// Lookup returns the resolved value of name and whether it was set.
func (r Resolved) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether name resolved to a value.
func (r Resolved) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// String returns a string field, or "" when absent.
func (r Resolved) String(name string) string {
	v, _ := r.values[name].(string)
	return v
}

// Int returns an int field, or 0 when absent.
func (r Resolved) Int(name string) int {
	v, _ := r.values[name].(int)
	return v
}

// Bool returns a bool field, or false when absent.
func (r Resolved) Bool(name string) bool {
	v, _ := r.values[name].(bool)
	return v
}

// Duration returns a duration field, or 0 when absent.
func (r Resolved) Duration(name string) time.Duration {
	v, _ := r.values[name].(time.Duration)
	return v
}

// Len returns the number of resolved fields.
func (r Resolved) Len() int {
	return len(r.values)
}
