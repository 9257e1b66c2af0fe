package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStyle(t *testing.T) {
	tests := []struct {
		name     string
		attr     string
		property string
		want     string
	}{
		{"single without terminator", "pointer-events: none", "pointer-events", "none"},
		{"single with terminator", "pointer-events: none;", "pointer-events", "none"},
		{"last without terminator", "overflow: hidden; pointer-events: none", "pointer-events", "none"},
		{"first of two", "overflow: hidden; pointer-events: none", "overflow", "hidden"},
		{"compact", "display:none", "display", "none"},
		{"case insensitive property", "Overflow: hidden", "overflow", "hidden"},
		{"missing", "color: red", "overflow", ""},
		{"empty", "  ", "overflow", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseStyle(tt.attr).get(tt.property))
		})
	}
}

func TestStyleRoundTripKeepsEveryDeclaration(t *testing.T) {
	style := parseStyle("overflow: hidden; pointer-events: none").set("color", "red")
	reparsed := parseStyle(style.String())

	assert.Equal(t, "hidden", reparsed.get("overflow"))
	assert.Equal(t, "none", reparsed.get("pointer-events"))
	assert.Equal(t, "red", reparsed.get("color"))
	assert.Equal(t, "overflow: hidden; pointer-events: none; color: red;", style.String())
}

func TestSetBodyStyleKeepsLastDeclarationReadable(t *testing.T) {
	d := MustParse(`<html><body style="overflow: hidden; pointer-events: none"></body></html>`)

	assert.NoError(t, d.SetBodyStyle("color", "red"))
	assert.NoError(t, d.SetBodyStyle("overflow", ""))

	assert.Equal(t, "none", d.BodyStyle("pointer-events"))
	assert.Equal(t, "red", d.BodyStyle("color"))
	assert.Equal(t, "", d.BodyStyle("overflow"))
}
