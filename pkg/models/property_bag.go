package models

// Property is a single (name, value) pair in a PropertyBag.
// A nil Value means "clear the stored property".
type Property struct {
	Name  string
	Value any
}

// PropertyBag is the ordered, generic property set understood by the metadata
// repository. A name that is absent from the bag is left untouched by an
// update; a name present with a nil value clears the stored property.
type PropertyBag struct {
	props []Property
}

// NewPropertyBag creates an empty bag.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{}
}

// Set adds name or replaces its value in place, keeping the original position.
func (b *PropertyBag) Set(name string, value any) *PropertyBag {
	for i := range b.props {
		if b.props[i].Name == name {
			b.props[i].Value = value
			return b
		}
	}
	b.props = append(b.props, Property{Name: name, Value: value})
	return b
}

// Clear marks name to be cleared.
func (b *PropertyBag) Clear(name string) *PropertyBag {
	return b.Set(name, nil)
}

// Get returns the value for name and whether name is present.
func (b *PropertyBag) Get(name string) (any, bool) {
	if b == nil {
		return nil, false
	}
	for _, p := range b.props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present (even with a nil value).
func (b *PropertyBag) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// Len returns the number of properties in the bag.
func (b *PropertyBag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.props)
}

// Names returns property names in insertion order.
func (b *PropertyBag) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.props))
	for _, p := range b.props {
		names = append(names, p.Name)
	}
	return names
}

// Properties returns a copy of the ordered pairs.
func (b *PropertyBag) Properties() []Property {
	if b == nil {
		return nil
	}
	out := make([]Property, len(b.props))
	copy(out, b.props)
	return out
}

// Values returns the non-nil values as a map, for inserting a new element.
func (b *PropertyBag) Values() map[string]any {
	out := make(map[string]any, b.Len())
	if b == nil {
		return out
	}
	for _, p := range b.props {
		if p.Value != nil {
			out[p.Name] = p.Value
		}
	}
	return out
}

// ApplyTo returns a new map holding stored with the bag applied: nil values
// delete, other values overwrite, absent names are kept.
func (b *PropertyBag) ApplyTo(stored map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+b.Len())
	for k, v := range stored {
		out[k] = v
	}
	if b == nil {
		return out
	}
	for _, p := range b.props {
		if p.Value == nil {
			delete(out, p.Name)
			continue
		}
		out[p.Name] = p.Value
	}
	return out
}
