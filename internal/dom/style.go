package dom

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// inlineStyle is the parsed content of a style attribute, in source order.
type inlineStyle []*css.Declaration

func parseStyle(attr string) inlineStyle {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return nil
	}
	// The parser drops a final declaration that lacks its terminator.
	if !strings.HasSuffix(attr, ";") {
		attr += ";"
	}
	decls, err := parser.ParseDeclarations(attr)
	if err != nil {
		return nil
	}
	return decls
}

func (s inlineStyle) get(property string) string {
	property = strings.ToLower(property)
	for i := len(s) - 1; i >= 0; i-- {
		if strings.ToLower(s[i].Property) == property {
			return strings.TrimSpace(s[i].Value)
		}
	}
	return ""
}

// set returns the style with property replaced, added or (empty value) removed.
func (s inlineStyle) set(property, value string) inlineStyle {
	property = strings.ToLower(property)
	out := make(inlineStyle, 0, len(s)+1)
	for _, d := range s {
		if strings.ToLower(d.Property) != property {
			out = append(out, d)
		}
	}
	if value != "" {
		out = append(out, &css.Declaration{Property: property, Value: value})
	}
	return out
}

func (s inlineStyle) String() string {
	parts := make([]string, 0, len(s))
	for _, d := range s {
		decl := d.Property + ": " + d.Value
		if d.Important {
			decl += " !important"
		}
		parts = append(parts, decl+";")
	}
	return strings.Join(parts, " ")
}

// pixels parses a "12px" or "12" length, reporting whether it was one.
func pixels(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
