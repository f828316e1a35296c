package optimistic

// FieldKind tells the engine how a top-level document field is stored.
type FieldKind int

const (
	// FieldScalar is a plain attribute (which may still hold a nested value).
	FieldScalar FieldKind = iota
	// FieldChild is a singular child document.
	FieldChild
	// FieldCollection is an ordered collection of child documents.
	FieldCollection
)

func (k FieldKind) String() string {
	switch k {
	case FieldChild:
		return "child"
	case FieldCollection:
		return "collection"
	}
	return "scalar"
}

// Schema maps top-level field names to their kind. Fields not listed are
// scalars.
type Schema map[string]FieldKind

// Kind returns the kind of the named field.
func (s Schema) Kind(name string) FieldKind {
	return s[name]
}

// Collections returns the names of all collection fields.
func (s Schema) Collections() []string {
	var names []string
	for name, kind := range s {
		if kind == FieldCollection {
			names = append(names, name)
		}
	}
	return names
}

// Document is the narrow capability set the engine needs from a live,
// mutable document. Implementations own the document graph; the engine only
// reads snapshots of it and issues mutations through these methods.
type Document interface {
	// Schema describes the document's top-level fields.
	Schema() Schema
	// Materialize serializes the current state of the document.
	Materialize() Snapshot

	Field(name string) (any, bool)
	SetField(name string, value any)
	// SetFields replaces the document's attributes with attrs.
	SetFields(attrs map[string]any)
	UnsetField(name string)

	Child(name string) (Document, bool)
	DetachChild(name string)

	Collection(name string) (Collection, bool)
}

// Collection is an ordered collection of child documents.
type Collection interface {
	Len() int
	// Get returns the member whose identity field equals id.
	Get(id any) (Document, bool)
	At(index int) (Document, bool)
	// Find returns the first member whose materialized form satisfies match.
	Find(match func(Snapshot) bool) (Document, bool)
	Add(value any)
	Remove(member Document)
}

// RemoteParser is implemented by documents that need to unwrap a wire
// payload (for example strip an envelope) before it can be compared.
type RemoteParser interface {
	ParseRemote(raw []byte) (Snapshot, error)
}
