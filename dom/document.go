// Package dom is the host document model the classifiers read from. It wraps
// an x/net/html tree with the structural queries a content script would make
// against a live page (closest, querySelectorAll, accessible name, text
// content) plus a small layout oracle for geometry and computed style.
//
// The only write the package performs is the visibility toggle in hide.go.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page. Nodes returned by its methods belong to the
// underlying tree; Document never detaches or reorders them.
type Document struct {
	Root *html.Node

	styles *Stylesheet
}

// New wraps an already parsed tree.
func New(root *html.Node) *Document {
	return &Document{Root: root}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the document, including any applied suppression, as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return findAtom(d.Root, atom.Body)
}

// IsTopLevel reports whether n is the document node, <html> or <body>.
func (d *Document) IsTopLevel(n *html.Node) bool {
	if n == nil {
		return true
	}
	if n.Type == html.DocumentNode || n == d.Root {
		return true
	}
	return n.Type == html.ElementNode && (n.DataAtom == atom.Html || n.DataAtom == atom.Body)
}

// MustSelector compiles a CSS selector, panicking on a malformed one. Meant
// for package-level selector tables.
func MustSelector(sel string) cascadia.Sel {
	s, err := cascadia.Parse(sel)
	if err != nil {
		panic(fmt.Sprintf("dom: selector %q: %v", sel, err))
	}
	return s
}

// QueryAll returns the descendants of root matching m in document order.
// root itself is never included, like Element.querySelectorAll.
func QueryAll(root *html.Node, m cascadia.Matcher) []*html.Node {
	if root == nil {
		return nil
	}
	return cascadia.QueryAll(root, m)
}

// Query returns the first descendant of root matching m, like
// Element.querySelector.
func Query(root *html.Node, m cascadia.Matcher) *html.Node {
	if root == nil {
		return nil
	}
	return cascadia.Query(root, m)
}

// Contains reports whether any descendant of root matches m.
func Contains(root *html.Node, m cascadia.Matcher) bool {
	return Query(root, m) != nil
}

// Closest walks from n (inclusive) towards the root and returns the first
// element matching m, like Element.closest.
func Closest(n *html.Node, m cascadia.Matcher) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && m.Match(cur) {
			return cur
		}
	}
	return nil
}

// ParentElement returns the nearest element ancestor of n, or nil.
func ParentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// ChildCount counts the element children of n, skipping text and
// comments, like Element.childElementCount.
func ChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

// Role returns the ARIA role attribute.
func Role(n *html.Node) string { return Attr(n, "role") }

// Label returns the accessible name carried by aria-label.
func Label(n *html.Node) string { return Attr(n, "aria-label") }

// TextContent concatenates every descendant text node, like Node.textContent.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// Walk visits every element under root in document order, root included.
func Walk(root *html.Node, fn func(*html.Node)) {
	if root == nil {
		return
	}
	if root.Type == html.ElementNode {
		fn(root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}
