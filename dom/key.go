package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Key identifies n across a snapshot boundary. Probe-stamped nodes use their
// data-fc-id; anything else falls back to an XPath with sibling indices,
// e.g. /html/body/div[2]/div.
func Key(n *html.Node) string {
	if id := Attr(n, AttrNodeID); id != "" {
		return id
	}
	return XPath(n)
}

// XPath computes the element path of n from the document root. Indices
// appear only where more than one sibling shares the tag.
func XPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		parts = append(parts, step(cur))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

func step(n *html.Node) string {
	name := strings.ToLower(n.Data)
	if n.Parent == nil {
		return name
	}
	idx, total := 0, 0
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || !strings.EqualFold(sib.Data, n.Data) {
			continue
		}
		total++
		if sib == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", name, idx)
	}
	return name
}

// FindByKey returns the element whose Key equals key, or nil.
func (d *Document) FindByKey(key string) *html.Node {
	var found *html.Node
	Walk(d.Root, func(n *html.Node) {
		if found == nil && Key(n) == key {
			found = n
		}
	})
	return found
}
