package flatten

import (
	"strings"
)

// Context is the flattened view of one source document: a case-insensitive
// map from dotted "element.attribute" paths to raw values, plus the ordered
// groups of repeated elements. It is built once per document and discarded
// after mapping.
type Context struct {
	values map[string][]string
	groups map[string][]*Element
	order  []string
}

// Element is one instance of a (possibly repeated) document element.
// Index is the zero-based position within its group, in document order.
type Element struct {
	Name       string
	Index      int
	Attributes map[string]string
	Children   []*Element

	// IdentityKey is the value of the group's discriminating attribute,
	// cascaded from the parent for nested children. Set during filtering.
	IdentityKey string
}

// NewContext returns an empty context. Used by the flattener and by tests
// that build contexts by hand.
func NewContext() *Context {
	return &Context{
		values: make(map[string][]string),
		groups: make(map[string][]*Element),
	}
}

// Add records one raw value under a dotted path. Repeated paths keep every
// value in document order; Lookup returns the first.
func (c *Context) Add(path, value string) {
	key := strings.ToLower(path)
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = append(c.values[key], value)
}

// AddElement appends an element instance to its group.
func (c *Context) AddElement(el *Element) {
	key := strings.ToLower(el.Name)
	el.Index = len(c.groups[key])
	c.groups[key] = append(c.groups[key], el)
}

// Lookup resolves a dotted path case-insensitively. When a path occurs more
// than once in the document the first occurrence wins.
func (c *Context) Lookup(path string) (string, bool) {
	vals, ok := c.values[strings.ToLower(path)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// LookupAll returns every value recorded under a dotted path, in document order.
func (c *Context) LookupAll(path string) []string {
	return c.values[strings.ToLower(path)]
}

// Group returns the ordered instances of a repeated element, or nil.
func (c *Context) Group(name string) []*Element {
	return c.groups[strings.ToLower(name)]
}

// GroupNames returns the names of all element groups present in the document.
func (c *Context) GroupNames() []string {
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	return names
}

// ReplaceGroup swaps a group's instances, used by the element filter to
// install the surviving subset.
func (c *Context) ReplaceGroup(name string, elements []*Element) {
	c.groups[strings.ToLower(name)] = elements
}

// Attr resolves an attribute on an element case-insensitively.
func (e *Element) Attr(name string) (string, bool) {
	val, ok := e.Attributes[strings.ToLower(name)]
	return val, ok
}
