package dom

import (
	"errors"
	"time"

	"golang.org/x/net/html"
)

var (
	ErrDetached    = errors.New("dom: node is not attached to the document")
	ErrNoBody      = errors.New("dom: document has no body")
	ErrUnavailable = errors.New("dom: no document available")
)

// Node is a reference to an element in the adapted document.
type Node = *html.Node

// Rect is an element's bounding box in CSS pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Area returns the box area.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Event is a DOM event delivered to listeners.
type Event struct {
	Type   string
	Target Node
	At     time.Time
}

// ListenerOptions mirror the addEventListener options the guard uses.
type ListenerOptions struct {
	Passive bool
}

// Adapter is the narrow view of the DOM that detection and cleanup need.
// Markers are CSS selectors, or XPath expressions prefixed with "xpath:".
type Adapter interface {
	// Available reports whether a document exists. Everything else is a
	// no-op when it returns false.
	Available() bool

	Query(marker string) []Node
	Matches(n Node, marker string) bool
	Closest(n Node, marker string) Node
	Contains(ancestor, n Node) bool

	Remove(n Node) error
	Attr(n Node, name string) (string, bool)
	SetAttr(n Node, name, value string) error

	// BodyStyle returns an inline style property of <body>, "" when unset.
	BodyStyle(property string) string
	// SetBodyStyle sets an inline style property; an empty value removes it.
	SetBodyStyle(property, value string) error
	HasBodyClass(class string) bool
	RemoveBodyClass(class string) error

	ActiveElement() Node
	Focus(n Node) error
	FocusBody() error

	Rect(n Node) Rect
	Visible(n Node) bool

	Listen(eventType string, fn func(Event), opts ListenerOptions) (unlisten func())
	Repaint() error
}

// Describe renders a short "tag#id.class" label for logs.
func Describe(n Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type != html.ElementNode {
		return "#" + nodeTypeName(n.Type)
	}
	label := n.Data
	if id, ok := attr(n, "id"); ok && id != "" {
		label += "#" + id
	}
	if class, ok := attr(n, "class"); ok && class != "" {
		label += "." + firstField(class)
	}
	return label
}

func nodeTypeName(t html.NodeType) string {
	switch t {
	case html.DocumentNode:
		return "document"
	case html.TextNode:
		return "text"
	case html.CommentNode:
		return "comment"
	default:
		return "node"
	}
}

func firstField(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
