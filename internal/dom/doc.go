/*
Package dom abstracts the document the guard observes and repairs.

Detection and cleanup only ever touch generic DOM state through Adapter:
marker queries, node removal, attributes, inline body styles and classes,
focus, layout boxes, event listeners and a repaint hook. They never reach
into component internals.

Markers are CSS selectors (matched with goquery/cascadia) or XPath
expressions prefixed with "xpath:" (matched with htmlquery).

Document is the in-process implementation over golang.org/x/net/html. It
journals every mutation, dispatches synthetic events, renders the
hard-recovery warning as a sanitized toast and treats Reload as re-parsing
the source. Unavailable stands in when there is no document at all.
*/
package dom
