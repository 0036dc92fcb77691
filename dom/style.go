package dom

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Probe stamps written into the live page by the browser host before a
// snapshot. Static documents usually lack them and fall back to the cascade.
const (
	AttrNodeID       = "data-fc-id"
	AttrHeight       = "data-fc-h"
	AttrBorderRadius = "data-fc-br"
)

// inlineSpecificity outranks any selector.
var inlineSpecificity = cascadia.Specificity{1 << 12, 0, 0}

type declaration struct {
	property  string
	value     string
	important bool
}

type styleRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []declaration
	order        int
}

// Stylesheet is the set of qualified rules collected from a document's
// <style> elements. @media and @supports blocks are flattened; everything
// else at-rule shaped is ignored.
type Stylesheet struct {
	rules []styleRule
}

var (
	sheetCacheOnce sync.Once
	sheetCache     *lru.Cache[string, *Stylesheet]
)

func stylesheetCache() *lru.Cache[string, *Stylesheet] {
	sheetCacheOnce.Do(func() {
		c, err := lru.New[string, *Stylesheet](64)
		if err != nil {
			panic("dom: stylesheet cache: " + err.Error())
		}
		sheetCache = c
	})
	return sheetCache
}

// ParseStylesheet parses CSS text. Live pages re-snapshot the same
// stylesheet on every pass, so results are cached by content hash.
func ParseStylesheet(text string) *Stylesheet {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	cache := stylesheetCache()
	if ss, ok := cache.Get(key); ok {
		return ss
	}
	ss := &Stylesheet{rules: parseRules(text)}
	cache.Add(key, ss)
	return ss
}

func parseRules(text string) []styleRule {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		slog.Debug("dom: stylesheet parse failed", "error", err)
		return nil
	}

	var rules []styleRule
	order := 0
	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				name := strings.ToLower(strings.TrimSpace(rule.Name))
				if (name == "@media" || name == "@supports") && rule.EmbedsRules() {
					walk(rule.Rules)
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, styleRule{
						selector:     sel,
						specificity:  sel.Specificity(),
						declarations: decls,
						order:        order,
					})
					order++
				}
			}
		}
	}
	walk(sheet.Rules)
	return rules
}

func convertDeclarations(in []*cssast.Declaration) []declaration {
	out := make([]declaration, 0, len(in))
	for _, d := range in {
		if d == nil {
			continue
		}
		out = append(out, declaration{
			property:  strings.ToLower(strings.TrimSpace(d.Property)),
			value:     strings.TrimSpace(d.Value),
			important: d.Important,
		})
	}
	return out
}

// parseInline parses a style attribute. The parser only closes a
// declaration on ';' or '}', so the input is always terminated first.
// Malformed input falls back to a naive split on ';' and ':'.
func parseInline(style string) []declaration {
	style = strings.TrimSpace(style)
	if style == "" {
		return nil
	}
	if decls, err := parser.ParseDeclarations(strings.TrimSuffix(style, ";") + ";"); err == nil {
		return convertDeclarations(decls)
	}
	var out []declaration
	for _, part := range strings.Split(style, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		value := strings.TrimSpace(kv[1])
		important := false
		if strings.HasSuffix(strings.ToLower(value), "!important") {
			important = true
			value = strings.TrimSpace(value[:len(value)-len("!important")])
		}
		out = append(out, declaration{
			property:  strings.ToLower(strings.TrimSpace(kv[0])),
			value:     value,
			important: important,
		})
	}
	return out
}

type propState struct {
	value     string
	spec      cascadia.Specificity
	order     int
	important bool
	set       bool
}

func (p *propState) apply(d declaration, spec cascadia.Specificity, order int) {
	if p.set {
		switch {
		case p.important && !d.important:
			return
		case d.important && !p.important:
		case spec.Less(p.spec):
			return
		case p.spec.Less(spec):
		case order < p.order:
			return
		}
	}
	*p = propState{value: d.value, spec: spec, order: order, important: d.important, set: true}
}

// Resolve returns the cascaded value of prop for n: matching rules by
// specificity and source order, then the inline style attribute.
func (ss *Stylesheet) Resolve(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	var st propState
	if ss != nil {
		for _, rule := range ss.rules {
			if !rule.selector.Match(n) {
				continue
			}
			for _, d := range rule.declarations {
				if d.property == prop && d.value != "" {
					st.apply(d, rule.specificity, rule.order)
				}
			}
		}
	}
	for i, d := range parseInline(Attr(n, "style")) {
		if d.property == prop && d.value != "" {
			st.apply(d, inlineSpecificity, (1<<30)+i)
		}
	}
	return st.value
}

// Styles returns the document's stylesheet, parsed on first use.
func (d *Document) Styles() *Stylesheet {
	if d.styles != nil {
		return d.styles
	}
	var b strings.Builder
	Walk(d.Root, func(n *html.Node) {
		if n.DataAtom != atom.Style {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte('\n')
			}
		}
	})
	d.styles = ParseStylesheet(b.String())
	return d.styles
}

// ComputedStyle returns the value of prop for n. A probe stamp wins over the
// cascade because it comes from the browser's own getComputedStyle.
func (d *Document) ComputedStyle(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	if prop == "border-radius" {
		if v := Attr(n, AttrBorderRadius); v != "" {
			return v
		}
	}
	return d.Styles().Resolve(n, prop)
}

// Height returns the rendered height of n in CSS pixels. Without a probe
// stamp it falls back to a px height from the cascade, else 0.
func (d *Document) Height(n *html.Node) float64 {
	if v := Attr(n, AttrHeight); v != "" {
		if h, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return h
		}
	}
	return parsePx(d.Styles().Resolve(n, "height"))
}

func parsePx(v string) float64 {
	v = strings.TrimSpace(strings.ToLower(v))
	if !strings.HasSuffix(v, "px") {
		return 0
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "px")), 64)
	if err != nil {
		return 0
	}
	return h
}
