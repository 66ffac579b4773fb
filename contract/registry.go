package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// Kind distinguishes mutating procedures from read-only functions.
type Kind string

const (
	KindProcedure Kind = "procedure"
	KindFunction  Kind = "function"
)

// ErrInvalidInput is returned when an entry point's input cannot be decoded.
var ErrInvalidInput = errors.New("contract: invalid input")

// Field is one named, typed member of an input or output record.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Shape describes an input or output record.
type Shape []Field

// EntryPoint describes a registered procedure or function.
type EntryPoint struct {
	Kind   Kind   `json:"kind"`
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Input  Shape  `json:"input"`
	Output Shape  `json:"output"`
}

// Result is what a dispatched entry point produced.
type Result struct {
	Output  any     `json:"output"`
	Outcome Outcome `json:"outcome"`
}

// Handler runs a decoded entry point.
type Handler func(inv *Invocation, input any) (Result, error)

type entry struct {
	EntryPoint
	handler Handler
}

type key struct {
	kind Kind
	id   uint16
}

// Registry holds the entry points of one contract.
type Registry struct {
	entries map[key]*entry
	names   map[string]key
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[key]*entry),
		names:   make(map[string]key),
	}
}

func (r *Registry) add(kind Kind, id uint16, name string, in, out reflect.Type, h Handler) {
	k := key{kind: kind, id: id}
	if _, dup := r.entries[k]; dup {
		panic(fmt.Sprintf("contract: duplicate %s id %d", kind, id))
	}
	if _, dup := r.names[name]; dup {
		panic(fmt.Sprintf("contract: duplicate entry point name %q", name))
	}
	r.entries[k] = &entry{
		EntryPoint: EntryPoint{
			Kind:   kind,
			ID:     id,
			Name:   name,
			Input:  shapeOf(in),
			Output: shapeOf(out),
		},
		handler: h,
	}
	r.names[name] = k
}

// Procedure registers a mutating entry point.
// It panics on a duplicate id or name (programming error).
func Procedure[I, O any](r *Registry, id uint16, name string, fn func(*Invocation, I) (O, Outcome)) {
	r.add(KindProcedure, id, name, typeOf[I](), typeOf[O](), func(inv *Invocation, input any) (Result, error) {
		in, err := Decode[I](input)
		if err != nil {
			return Result{}, err
		}
		out, outcome := fn(inv, in)
		return Result{Output: out, Outcome: outcome}, nil
	})
}

// Function registers a read-only entry point.
// It panics on a duplicate id or name (programming error).
func Function[I, O any](r *Registry, id uint16, name string, fn func(*Invocation, I) O) {
	r.add(KindFunction, id, name, typeOf[I](), typeOf[O](), func(inv *Invocation, input any) (Result, error) {
		in, err := Decode[I](input)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: fn(inv, in), Outcome: Applied()}, nil
	})
}

// Lookup finds an entry point by kind and id.
func (r *Registry) Lookup(kind Kind, id uint16) (EntryPoint, Handler, bool) {
	e, ok := r.entries[key{kind: kind, id: id}]
	if !ok {
		return EntryPoint{}, nil, false
	}
	return e.EntryPoint, e.handler, true
}

// LookupName finds an entry point by name.
func (r *Registry) LookupName(name string) (EntryPoint, Handler, bool) {
	k, ok := r.names[name]
	if !ok {
		return EntryPoint{}, nil, false
	}
	return r.Lookup(k.kind, k.id)
}

// EntryPoints lists procedures then functions, each ordered by id.
func (r *Registry) EntryPoints() []EntryPoint {
	out := make([]EntryPoint, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.EntryPoint)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindProcedure
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Decode converts a raw or typed input into I. nil and empty JSON decode to
// the zero value. Fields that I does not declare are rejected.
func Decode[I any](input any) (I, error) {
	var v I
	var raw []byte
	switch x := input.(type) {
	case nil:
		return v, nil
	case I:
		return x, nil
	case json.RawMessage:
		raw = x
	case []byte:
		raw = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return v, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		raw = b
	}
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return v, fmt.Errorf("%w: trailing data after input", ErrInvalidInput)
	}
	return v, nil
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func shapeOf(t reflect.Type) Shape {
	if t.Kind() != reflect.Struct {
		return Shape{}
	}
	shape := make(Shape, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		shape = append(shape, Field{Name: name, Type: f.Type.String()})
	}
	return shape
}
