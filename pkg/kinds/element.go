package kinds

import "sort"

// Element is one node of a schema tree. The zero value is not useful; build
// elements with the constructors in this file or through a Provider.
//
// A nil *Element behaves like the Unknown element.
type Element struct {
	strategy   MergeStrategy
	mergeKey   string
	properties map[string]*Element
	collection *Element
}

var (
	unknownElement   = &Element{strategy: Unknown}
	primitiveElement = &Element{strategy: ReplacePrimitive}
)

// UnknownElement returns the shared element used when nothing is known about
// a node. All of its children are also unknown.
func UnknownElement() *Element {
	return unknownElement
}

// PrimitiveElement returns the shared ReplacePrimitive element.
func PrimitiveElement() *Element {
	return primitiveElement
}

// ObjectElement returns a MergeObject element with the given properties.
func ObjectElement(properties map[string]*Element) *Element {
	e := &Element{strategy: MergeObject, properties: make(map[string]*Element, len(properties))}
	for name, child := range properties {
		e.properties[name] = child
	}
	return e
}

// MapElement returns a MergeMap element whose values are described by value.
func MapElement(value *Element) *Element {
	return &Element{strategy: MergeMap, collection: value}
}

// ListElement returns a list element with a strategy that needs no merge key.
// Passing MergeListOfObject panics; use KeyedListElement instead.
func ListElement(strategy MergeStrategy, item *Element) *Element {
	if !strategy.IsList() || strategy == MergeListOfObject {
		panic("kinds: ListElement called with " + strategy.String())
	}
	return &Element{strategy: strategy, collection: item}
}

// KeyedListElement returns a MergeListOfObject element matching items by mergeKey.
func KeyedListElement(mergeKey string, item *Element) *Element {
	return &Element{strategy: MergeListOfObject, mergeKey: mergeKey, collection: item}
}

// MergeStrategy returns the strategy the element was built with.
func (e *Element) MergeStrategy() MergeStrategy {
	if e == nil {
		return Unknown
	}
	return e.strategy
}

// MergeKey returns the merge key of a MergeListOfObject element.
func (e *Element) MergeKey() string {
	if e == nil {
		return ""
	}
	return e.mergeKey
}

// Property returns the child element for an object property. Unknown
// properties resolve to the Unknown element.
func (e *Element) Property(name string) *Element {
	if e == nil {
		return unknownElement
	}
	if child, ok := e.properties[name]; ok && child != nil {
		return child
	}
	return unknownElement
}

// CollectionElement returns the element of list items or map values.
func (e *Element) CollectionElement() *Element {
	if e == nil || e.collection == nil {
		return unknownElement
	}
	return e.collection
}

// PropertyNames returns the declared property names in sorted order.
func (e *Element) PropertyNames() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.properties))
	for name := range e.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
