// Package model is an in-memory document graph implementing the
// optimistic.Document capability interface.
//
// A Model holds scalar attributes, singular child models and ordered
// collections of member models, all described by a Definition. Every
// mutation is reported to the observers of the root model as an
// optimistic.Operation, so a Tracker can keep an incremental edit log.
package model

import (
	"strconv"

	"github.com/barkimedes/go-deepcopy"
	"github.com/google/uuid"

	"github.com/brunoga/optimistic"
	"github.com/brunoga/optimistic/internal/core"
)

// Definition describes the shape of a model.
type Definition struct {
	// Fields lists the child and collection fields. Anything else is a
	// scalar attribute.
	Fields optimistic.Schema
	// Types holds the definitions of child models and collection members,
	// keyed by field name. A missing entry means an empty definition.
	Types map[string]*Definition
	// Defaults are applied to attributes missing at construction time.
	Defaults map[string]any
	// IdentityField identifies collection members. The default is "id".
	IdentityField string
}

func (d *Definition) typeOf(field string) *Definition {
	if d == nil || d.Types[field] == nil {
		return &Definition{}
	}
	return d.Types[field]
}

func (d *Definition) identity() string {
	if d == nil || d.IdentityField == "" {
		return optimistic.DefaultIdentityField
	}
	return d.IdentityField
}

// Model is a live document. It is not safe for concurrent use.
type Model struct {
	def         *Definition
	cid         string
	attrs       map[string]any
	children    map[string]*Model
	collections map[string]*Collection

	parent *Model
	field  string
	owner  *Collection

	observers []func(optimistic.Operation)
	silent    int
}

var _ optimistic.Document = (*Model)(nil)

// New creates a root model from attrs. Child and collection fields are
// turned into nested models.
func New(def *Definition, attrs map[string]any) *Model {
	if def == nil {
		def = &Definition{}
	}
	m := &Model{
		def:         def,
		cid:         uuid.NewString(),
		attrs:       make(map[string]any),
		children:    make(map[string]*Model),
		collections: make(map[string]*Collection),
	}
	for name, kind := range def.Fields {
		if kind == optimistic.FieldCollection {
			m.collections[name] = newCollection(m, name, def.typeOf(name))
		}
	}
	for k, v := range def.Defaults {
		if _, ok := attrs[k]; !ok {
			m.assign(k, deepcopy.MustAnything(v))
		}
	}
	for k, v := range attrs {
		m.assign(k, v)
	}
	return m
}

// FromSnapshot creates a root model from a snapshot.
func FromSnapshot(def *Definition, s optimistic.Snapshot) *Model {
	return New(def, s.Clone())
}

// CID returns the client-side id of the model, unique per instance.
func (m *Model) CID() string {
	return m.cid
}

// Observe registers fn to be called with every operation describing a
// mutation of the model or any of its descendants.
func (m *Model) Observe(fn func(optimistic.Operation)) {
	root := m.root()
	root.observers = append(root.observers, fn)
}

// Silently runs fn without notifying observers.
func (m *Model) Silently(fn func()) {
	root := m.root()
	root.silent++
	defer func() { root.silent-- }()
	fn()
}

func (m *Model) root() *Model {
	for m.parent != nil {
		m = m.parent
	}
	return m
}

// Path returns the JSON pointer of the model relative to its root.
func (m *Model) Path() string {
	if m.parent == nil {
		return ""
	}
	base := core.JoinPath(m.parent.Path(), core.EscapeKey(m.field))
	if m.owner != nil {
		return core.JoinPath(base, strconv.Itoa(m.owner.indexOf(m)))
	}
	return base
}

func (m *Model) fieldPath(name string) string {
	return core.JoinPath(m.Path(), core.EscapeKey(name))
}

func (m *Model) emit(op optimistic.Operation) {
	root := m.root()
	if root.silent > 0 || len(root.observers) == 0 {
		return
	}
	if op.Context == nil {
		op.Context = m.context()
	}
	for _, fn := range root.observers {
		fn(op)
	}
}

// context describes the outermost collection m belongs to, if any.
func (m *Model) context() *optimistic.OpContext {
	var outer *Model
	for x := m; x.parent != nil; x = x.parent {
		if x.owner != nil {
			outer = x
		}
	}
	if outer == nil {
		return nil
	}
	return &optimistic.OpContext{Index: outer.owner.indexOf(outer), Source: outer.owner.materialize()}
}

// Schema implements optimistic.Document.
func (m *Model) Schema() optimistic.Schema {
	return m.def.Fields
}

// Materialize implements optimistic.Document.
func (m *Model) Materialize() optimistic.Snapshot {
	s := make(optimistic.Snapshot, len(m.attrs)+len(m.children)+len(m.collections))
	for k, v := range m.attrs {
		s[k] = deepcopy.MustAnything(v)
	}
	for k, child := range m.children {
		s[k] = map[string]any(child.Materialize())
	}
	for k, c := range m.collections {
		s[k] = c.materialize()
	}
	return s
}

// Field implements optimistic.Document.
func (m *Model) Field(name string) (any, bool) {
	switch m.def.Fields.Kind(name) {
	case optimistic.FieldChild:
		child, ok := m.children[name]
		if !ok {
			return nil, false
		}
		return map[string]any(child.Materialize()), true
	case optimistic.FieldCollection:
		return m.collections[name].materialize(), true
	}
	v, ok := m.attrs[name]
	return v, ok
}

// Get returns a scalar attribute.
func (m *Model) Get(name string) any {
	return m.attrs[name]
}

// Set sets a field. It is SetField under the name used by host code.
func (m *Model) Set(name string, value any) {
	m.SetField(name, value)
}

// SetField implements optimistic.Document. An object assigned to a child
// field replaces the child; an array assigned to a collection field replaces
// its members.
func (m *Model) SetField(name string, value any) {
	prev, existed := m.Field(name)
	if existed && optimistic.Equal(prev, value) {
		return
	}
	m.Silently(func() { m.assign(name, value) })
	kind := optimistic.OpReplace
	if !existed {
		kind = optimistic.OpAdd
	}
	m.emit(optimistic.Operation{Kind: kind, Path: m.fieldPath(name), Value: value})
}

func (m *Model) assign(name string, value any) {
	switch m.def.Fields.Kind(name) {
	case optimistic.FieldChild:
		attrs, ok := core.AsObject(value)
		if !ok {
			return
		}
		child := New(m.def.typeOf(name), attrs)
		child.parent = m
		child.field = name
		m.children[name] = child
	case optimistic.FieldCollection:
		c := m.collections[name]
		c.clear()
		list, _ := core.AsArray(value)
		for _, v := range list {
			c.add(v)
		}
	default:
		m.attrs[name] = value
	}
}

// SetFields implements optimistic.Document. Scalar attributes missing from
// attrs are unset; child and collection fields missing from attrs are kept.
func (m *Model) SetFields(attrs map[string]any) {
	for name := range m.attrs {
		if _, ok := attrs[name]; !ok {
			m.UnsetField(name)
		}
	}
	for name, v := range attrs {
		m.SetField(name, v)
	}
}

// UnsetField implements optimistic.Document.
func (m *Model) UnsetField(name string) {
	switch m.def.Fields.Kind(name) {
	case optimistic.FieldChild:
		m.DetachChild(name)
		return
	case optimistic.FieldCollection:
		c := m.collections[name]
		for c.Len() > 0 {
			c.removeAt(c.Len() - 1)
		}
		return
	}
	if _, ok := m.attrs[name]; !ok {
		return
	}
	delete(m.attrs, name)
	m.emit(optimistic.Remove(m.fieldPath(name)))
}

// Child implements optimistic.Document.
func (m *Model) Child(name string) (optimistic.Document, bool) {
	child, ok := m.children[name]
	if !ok {
		return nil, false
	}
	return child, true
}

// ChildModel is Child returning the concrete type.
func (m *Model) ChildModel(name string) *Model {
	return m.children[name]
}

// DetachChild implements optimistic.Document.
func (m *Model) DetachChild(name string) {
	child, ok := m.children[name]
	if !ok {
		return
	}
	path := child.Path()
	delete(m.children, name)
	child.parent = nil
	m.emit(optimistic.Remove(path))
}

// Collection implements optimistic.Document.
func (m *Model) Collection(name string) (optimistic.Collection, bool) {
	c, ok := m.collections[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// Members returns the named collection with its concrete type.
func (m *Model) Members(name string) *Collection {
	return m.collections[name]
}
