package flatten

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Parser produces a flattened context from a raw document payload. The
// engine only depends on this interface; XMLParser is the reference
// implementation for the XML exports the upstream product systems deliver.
type Parser interface {
	Parse(payload string) (*Context, error)
	// ParseSelective flattens only the named elements (and their subtrees),
	// which keeps memory flat on large documents.
	ParseSelective(payload string, elements []string) (*Context, error)
}

// XMLParser flattens nested XML into dotted element.attribute paths.
// An element's attributes are its XML attributes plus every simple child
// (a child holding only character data). Complex children become nested
// Element instances.
type XMLParser struct{}

func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

func (p *XMLParser) Parse(payload string) (*Context, error) {
	return p.parse(payload, nil)
}

func (p *XMLParser) ParseSelective(payload string, elements []string) (*Context, error) {
	keep := make(map[string]bool, len(elements))
	for _, name := range elements {
		keep[strings.ToLower(name)] = true
	}
	return p.parse(payload, keep)
}

type xmlNode struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*xmlNode
}

func (p *XMLParser) parse(payload string, keep map[string]bool) (*Context, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: make(map[string]string)}
			for _, attr := range t.Attr {
				node.attrs[strings.ToLower(attr.Name.Local)] = attr.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}

	ctx := NewContext()
	flattenNode(ctx, root, keep, keep == nil)
	return ctx, nil
}

// flattenNode registers node and descends. kept cascades: once an element is
// selected, its whole subtree stays visible.
func flattenNode(ctx *Context, node *xmlNode, keep map[string]bool, kept bool) *Element {
	if !kept && keep != nil {
		kept = keep[strings.ToLower(node.name)]
	}

	el := &Element{Name: node.name, Attributes: make(map[string]string)}
	for name, val := range node.attrs {
		el.Attributes[name] = val
	}
	for _, child := range node.children {
		if isSimple(child) {
			el.Attributes[strings.ToLower(child.name)] = strings.TrimSpace(child.text.String())
		}
	}

	for _, child := range node.children {
		if isSimple(child) {
			continue
		}
		childEl := flattenNode(ctx, child, keep, kept)
		if childEl != nil {
			el.Children = append(el.Children, childEl)
		}
	}

	if !kept {
		return nil
	}
	for name, val := range el.Attributes {
		ctx.Add(node.name+"."+name, val)
	}
	ctx.AddElement(el)
	return el
}

// isSimple reports whether a node carries only character data.
func isSimple(node *xmlNode) bool {
	return len(node.children) == 0 && len(node.attrs) == 0 && strings.TrimSpace(node.text.String()) != ""
}
