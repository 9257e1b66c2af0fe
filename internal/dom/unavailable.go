package dom

// Unavailable is the adapter used outside a browser context, such as
// during server rendering. It reports no document and ignores writes.
type Unavailable struct{}

var _ Adapter = Unavailable{}

func (Unavailable) Available() bool { return false }
func (Unavailable) Query(string) []Node { return nil }
func (Unavailable) Matches(Node, string) bool { return false }
func (Unavailable) Closest(Node, string) Node { return nil }
func (Unavailable) Contains(Node, Node) bool { return false }
func (Unavailable) Remove(Node) error { return ErrUnavailable }
func (Unavailable) Attr(Node, string) (string, bool) { return "", false }
func (Unavailable) SetAttr(Node, string, string) error { return ErrUnavailable }
func (Unavailable) BodyStyle(string) string { return "" }
func (Unavailable) SetBodyStyle(string, string) error { return ErrUnavailable }
func (Unavailable) HasBodyClass(string) bool { return false }
func (Unavailable) RemoveBodyClass(string) error { return ErrUnavailable }
func (Unavailable) ActiveElement() Node { return nil }
func (Unavailable) Focus(Node) error { return ErrUnavailable }
func (Unavailable) FocusBody() error { return ErrUnavailable }
func (Unavailable) Rect(Node) Rect { return Rect{} }
func (Unavailable) Visible(Node) bool { return false }
func (Unavailable) Repaint() error { return ErrUnavailable }
func (Unavailable) Listen(string, func(Event), ListenerOptions) func() {
	return func() {}
}
