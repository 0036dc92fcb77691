package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// IsHidden reports whether n carries an inline display:none. Only the inline
// style is inspected: that is the one property Hide writes, and it is how an
// earlier pass's verdict is recognised on the next one.
func IsHidden(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, d := range parseInline(Attr(n, "style")) {
		if d.property == "display" && strings.EqualFold(d.value, "none") {
			return true
		}
	}
	return false
}

// Hide sets display:none on n and reports whether anything changed. It keeps
// every other inline declaration and never touches children or text, so a
// wrong verdict is undone by removing the one declaration.
func Hide(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || IsHidden(n) {
		return false
	}
	var parts []string
	for _, d := range parseInline(Attr(n, "style")) {
		if d.property == "display" {
			continue
		}
		decl := d.property + ": " + d.value
		if d.important {
			decl += " !important"
		}
		parts = append(parts, decl)
	}
	parts = append(parts, "display: none")
	SetAttr(n, "style", joinDeclarations(parts))
	return true
}

// Unhide removes an inline display:none and reports whether anything changed.
func Unhide(n *html.Node) bool {
	if !IsHidden(n) {
		return false
	}
	var parts []string
	for _, d := range parseInline(Attr(n, "style")) {
		if d.property == "display" && strings.EqualFold(d.value, "none") {
			continue
		}
		decl := d.property + ": " + d.value
		if d.important {
			decl += " !important"
		}
		parts = append(parts, decl)
	}
	SetAttr(n, "style", joinDeclarations(parts))
	return true
}

// joinDeclarations renders declarations the way a browser serializes
// element.style, each one terminated by ';'.
func joinDeclarations(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}
