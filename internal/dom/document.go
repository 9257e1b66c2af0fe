package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const xpathPrefix = "xpath:"

// defaultBox is the layout assumed for a visible element with no recorded
// or inline size. Static documents carry no layout information.
var defaultBox = Rect{Width: 100, Height: 100}

// Change is one mutation recorded in the document journal.
type Change struct {
	Op     string    `json:"op"`
	Target string    `json:"target"`
	Name   string    `json:"name,omitempty"`
	Value  string    `json:"value,omitempty"`
	At     time.Time `json:"at"`
}

type listener struct {
	fn      func(Event)
	passive bool
	once    sync.Once
	removed atomic.Bool
}

// Document is an Adapter over a parsed HTML document. It keeps a journal
// of every mutation, dispatches synthetic events to listeners, and models
// a page reload as re-parsing the original source.
type Document struct {
	mu        sync.Mutex
	source    string
	doc       *goquery.Document
	layout    map[Node]Rect
	active    Node
	listeners map[string][]*listener
	journal   []Change
	repaints  int
	reloads   int
	warnings  []string
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

var _ Adapter = (*Document)(nil)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ParseString(string(src))
}

// ParseString parses an HTML document from a string.
func ParseString(src string) (*Document, error) {
	d := &Document{
		source:    src,
		listeners: make(map[string][]*listener),
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustParse is ParseString for fixtures; it panics on error.
func MustParse(src string) *Document {
	d, err := ParseString(src)
	if err != nil {
		panic(err)
	}
	return d
}

// SetClock replaces the time source used for journal entries and events.
func (d *Document) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

func (d *Document) load() error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.source))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	d.doc = doc
	d.layout = make(map[Node]Rect)
	d.active = nil
	return nil
}

// Available always reports true.
func (d *Document) Available() bool { return true }

// Query returns the nodes matching marker in document order.
func (d *Document) Query(marker string) []Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query(marker)
}

func (d *Document) query(marker string) []Node {
	if expr, ok := strings.CutPrefix(marker, xpathPrefix); ok {
		nodes, err := htmlquery.QueryAll(d.root(), expr)
		if err != nil {
			return nil
		}
		return nodes
	}
	return d.doc.Find(marker).Nodes
}

func (d *Document) root() Node {
	return d.doc.Nodes[0]
}

// Matches reports whether n matches marker.
func (d *Document) Matches(n Node, marker string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matches(n, marker)
}

func (d *Document) matches(n Node, marker string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if strings.HasPrefix(marker, xpathPrefix) {
		for _, m := range d.query(marker) {
			if m == n {
				return true
			}
		}
		return false
	}
	return goquery.NewDocumentFromNode(n).Is(marker)
}

// Closest returns n or its nearest ancestor matching marker.
func (d *Document) Closest(n Node, marker string) Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	for cur := n; cur != nil; cur = cur.Parent {
		if d.matches(cur, marker) {
			return cur
		}
	}
	return nil
}

// Contains reports whether n is ancestor or a descendant of it.
func (d *Document) Contains(ancestor, n Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return contains(ancestor, n)
}

func contains(ancestor, n Node) bool {
	if ancestor == nil {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Remove detaches n from the document.
func (d *Document) Remove(n Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == nil || n.Parent == nil || !d.attached(n) {
		return ErrDetached
	}
	n.Parent.RemoveChild(n)
	d.record("remove", n, "", "")
	return nil
}

func (d *Document) attached(n Node) bool {
	return contains(d.root(), n)
}

// Attr returns an attribute of n.
func (d *Document) Attr(n Node, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return attr(n, name)
}

func attr(n Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute of n, recording a change only when the value differs.
func (d *Document) SetAttr(n Node, name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == nil || n.Type != html.ElementNode {
		return ErrDetached
	}
	if d.setAttr(n, name, value) {
		d.record("set-attr", n, name, value)
	}
	return nil
}

func (d *Document) setAttr(n Node, name, value string) bool {
	for i, a := range n.Attr {
		if a.Key == name {
			if a.Val == value {
				return false
			}
			n.Attr[i].Val = value
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	return true
}

func (d *Document) removeAttr(n Node, name string) bool {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Document) body() Node {
	nodes := d.doc.Find("body").Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// BodyStyle returns an inline style property of <body>.
func (d *Document) BodyStyle(property string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.body()
	if body == nil {
		return ""
	}
	v, _ := attr(body, "style")
	return parseStyle(v).get(property)
}

// SetBodyStyle sets or (empty value) removes an inline style property of <body>.
func (d *Document) SetBodyStyle(property, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.body()
	if body == nil {
		return ErrNoBody
	}
	raw, _ := attr(body, "style")
	style := parseStyle(raw)
	if style.get(property) == value {
		return nil
	}
	updated := style.set(property, value).String()
	if updated == "" {
		d.removeAttr(body, "style")
	} else {
		d.setAttr(body, "style", updated)
	}
	d.record("set-style", body, property, value)
	return nil
}

// HasBodyClass reports whether <body> carries class.
func (d *Document) HasBodyClass(class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.body()
	if body == nil {
		return false
	}
	v, _ := attr(body, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// RemoveBodyClass removes class from <body>.
func (d *Document) RemoveBodyClass(class string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.body()
	if body == nil {
		return ErrNoBody
	}
	v, _ := attr(body, "class")
	fields := strings.Fields(v)
	kept := fields[:0]
	for _, c := range fields {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(strings.Fields(v)) {
		return nil
	}
	if len(kept) == 0 {
		d.removeAttr(body, "class")
	} else {
		d.setAttr(body, "class", strings.Join(kept, " "))
	}
	d.record("remove-class", body, "class", class)
	return nil
}

// ActiveElement returns the focused element, <body> when nothing is focused.
func (d *Document) ActiveElement() Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		return d.active
	}
	return d.body()
}

// Focus moves focus to n.
func (d *Document) Focus(n Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == nil || !d.attached(n) {
		return ErrDetached
	}
	if d.active != n {
		d.active = n
		d.record("focus", n, "", "")
	}
	return nil
}

// FocusBody blurs the active element and focuses <body>.
func (d *Document) FocusBody() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.body()
	if body == nil {
		return ErrNoBody
	}
	if d.active != nil && d.active != body {
		d.active = nil
		d.record("focus", body, "", "")
	}
	return nil
}

// SetRect records a layout box for n, overriding inline sizes.
func (d *Document) SetRect(n Node, r Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout[n] = r
}

// Rect returns the bounding box of n. Hidden or detached elements have a
// zero box.
func (d *Document) Rect(n Node) Rect {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == nil || !d.attached(n) || !visible(n) {
		return Rect{}
	}
	if r, ok := d.layout[n]; ok {
		return r
	}
	r := defaultBox
	raw, _ := attr(n, "style")
	style := parseStyle(raw)
	if w, ok := pixels(style.get("width")); ok {
		r.Width = w
	}
	if h, ok := pixels(style.get("height")); ok {
		r.Height = h
	}
	return r
}

// Visible reports whether n is attached and not hidden by itself or an ancestor.
func (d *Document) Visible(n Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return n != nil && d.attached(n) && visible(n)
}

func visible(n Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if _, hidden := attr(cur, "hidden"); hidden {
			return false
		}
		raw, _ := attr(cur, "style")
		style := parseStyle(raw)
		if style.get("display") == "none" || style.get("visibility") == "hidden" {
			return false
		}
		if op := style.get("opacity"); op == "0" || op == "0.0" {
			return false
		}
	}
	return true
}

// Listen registers fn for eventType. The returned function removes it and
// is safe to call more than once.
func (d *Document) Listen(eventType string, fn func(Event), opts ListenerOptions) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := &listener{fn: fn, passive: opts.Passive}
	d.listeners[eventType] = append(d.listeners[eventType], l)

	return func() {
		l.once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()

			l.removed.Store(true)
			list := d.listeners[eventType]
			for i, cur := range list {
				if cur == l {
					d.listeners[eventType] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Dispatch delivers an event to every listener registered for its type.
// Listeners run outside the document lock.
func (d *Document) Dispatch(eventType string, target Node) int {
	d.mu.Lock()
	list := append([]*listener(nil), d.listeners[eventType]...)
	ev := Event{Type: eventType, Target: target, At: d.now()}
	d.mu.Unlock()

	n := 0
	for _, l := range list {
		if l.removed.Load() {
			continue
		}
		l.fn(ev)
		n++
	}
	return n
}

// ListenerCount returns the number of listeners for eventType.
func (d *Document) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[eventType])
}

// Repaint forces a layout pass: toggle-and-revert a transform on <body>
// followed by a resize event.
func (d *Document) Repaint() error {
	d.mu.Lock()
	body := d.body()
	if body == nil {
		d.mu.Unlock()
		return ErrNoBody
	}
	raw, hadStyle := attr(body, "style")
	d.setAttr(body, "style", parseStyle(raw).set("transform", "translateZ(0)").String())
	if hadStyle {
		d.setAttr(body, "style", raw)
	} else {
		d.removeAttr(body, "style")
	}
	d.repaints++
	d.mu.Unlock()

	d.Dispatch("resize", nil)
	return nil
}

// ShowWarning renders a sanitized alert toast at the end of <body>.
func (d *Document) ShowWarning(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.warnings = append(d.warnings, message)
	body := d.body()
	if body == nil {
		return
	}
	toast := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{
			{Key: "role", Val: "alert"},
			{Key: "data-guard-toast", Val: ""},
		},
	}
	toast.AppendChild(&html.Node{Type: html.TextNode, Data: html.UnescapeString(d.sanitizer.Sanitize(message))})
	body.AppendChild(toast)
	d.record("append", toast, "", message)
}

// Reload discards every change and re-parses the original source, keeping
// registered listeners.
func (d *Document) Reload() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return
	}
	d.reloads++
	d.journal = append(d.journal, Change{Op: "reload", At: d.now()})
}

func (d *Document) record(op string, n Node, name, value string) {
	d.journal = append(d.journal, Change{
		Op:     op,
		Target: Describe(n),
		Name:   name,
		Value:  value,
		At:     d.now(),
	})
}

// Journal returns a copy of the mutation journal.
func (d *Document) Journal() []Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Change(nil), d.journal...)
}

// Repaints returns how many repaints were forced.
func (d *Document) Repaints() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.repaints
}

// Reloads returns how many times the document was reloaded.
func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// Warnings returns the warnings shown so far.
func (d *Document) Warnings() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.warnings...)
}

// HTML renders the current document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root()); err != nil {
		return "", err
	}
	return buf.String(), nil
}
