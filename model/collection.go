package model

import (
	"strconv"

	"github.com/brunoga/optimistic"
	"github.com/brunoga/optimistic/internal/core"
)

// Collection is an ordered set of member models.
type Collection struct {
	parent  *Model
	name    string
	def     *Definition
	members []*Model
}

var _ optimistic.Collection = (*Collection)(nil)

func newCollection(parent *Model, name string, def *Definition) *Collection {
	return &Collection{parent: parent, name: name, def: def}
}

func (c *Collection) path() string {
	return core.JoinPath(c.parent.Path(), core.EscapeKey(c.name))
}

func (c *Collection) materialize() []any {
	out := make([]any, len(c.members))
	for i, m := range c.members {
		out[i] = map[string]any(m.Materialize())
	}
	return out
}

func (c *Collection) indexOf(member *Model) int {
	for i, m := range c.members {
		if m == member {
			return i
		}
	}
	return -1
}

// Len implements optimistic.Collection.
func (c *Collection) Len() int {
	return len(c.members)
}

// Get implements optimistic.Collection.
func (c *Collection) Get(id any) (optimistic.Document, bool) {
	m := c.Member(id)
	if m == nil {
		return nil, false
	}
	return m, true
}

// Member returns the member whose identity equals id, or nil.
func (c *Collection) Member(id any) *Model {
	key := c.def.identity()
	for _, m := range c.members {
		if v, ok := m.attrs[key]; ok && optimistic.Equal(v, id) {
			return m
		}
	}
	return nil
}

// At implements optimistic.Collection.
func (c *Collection) At(index int) (optimistic.Document, bool) {
	if index < 0 || index >= len(c.members) {
		return nil, false
	}
	return c.members[index], true
}

// Find implements optimistic.Collection.
func (c *Collection) Find(match func(optimistic.Snapshot) bool) (optimistic.Document, bool) {
	for _, m := range c.members {
		if match(m.Materialize()) {
			return m, true
		}
	}
	return nil, false
}

// Models returns the members in order.
func (c *Collection) Models() []*Model {
	out := make([]*Model, len(c.members))
	copy(out, c.members)
	return out
}

// Add implements optimistic.Collection. Values that are not objects are
// ignored.
func (c *Collection) Add(value any) {
	if c.add(value) == nil {
		return
	}
	c.parent.emit(optimistic.Add(core.JoinPath(c.path(), core.AppendMarker), value))
}

func (c *Collection) add(value any) *Model {
	attrs, ok := core.AsObject(value)
	if !ok {
		return nil
	}
	m := New(c.def, attrs)
	m.parent = c.parent
	m.field = c.name
	m.owner = c
	c.members = append(c.members, m)
	return m
}

// Remove implements optimistic.Collection. Documents that are not members
// are ignored.
func (c *Collection) Remove(member optimistic.Document) {
	m, ok := member.(*Model)
	if !ok {
		return
	}
	if i := c.indexOf(m); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Collection) removeAt(i int) {
	source := c.materialize()
	m := c.members[i]
	c.members = append(c.members[:i], c.members[i+1:]...)
	m.parent, m.owner = nil, nil

	op := optimistic.Remove(core.JoinPath(c.path(), strconv.Itoa(i)))
	if c.parent.context() == nil {
		op.Context = &optimistic.OpContext{Index: i, Source: source}
	}
	c.parent.emit(op)
}

func (c *Collection) clear() {
	for _, m := range c.members {
		m.parent, m.owner = nil, nil
	}
	c.members = nil
}
