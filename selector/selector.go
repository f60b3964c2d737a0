// Package selector implements a shallow, non-conformant CSS selector
// parser. It is intentionally not a full selector-grammar
// implementation — just enough structure for the style sheet to key
// on something meaningful.
package selector

import (
	"strings"

	"github.com/mailsentry/cssguard/block"
	"github.com/mailsentry/cssguard/token"
)

// Kind classifies a selector's head token for diagnostic purposes
// only; it never feeds a real specificity calculation.
type Kind int

const (
	KindOther Kind = iota
	KindTag
	KindClass
	KindID
)

// Selector is one top-level, comma-separated selector group.
type Selector struct {
	Text string
	Kind Kind
}

// Parse consumes a preamble functor — the children of a qualified
// rule that precede its declaration block — and returns one Selector
// per top-level comma-separated group. An empty preamble yields an
// empty slice, which the caller (cssguard.Parse) treats as "rule
// dropped".
func Parse(next func() *block.ConsumedBlock) []Selector {
	var selectors []Selector
	var group []*block.ConsumedBlock

	flush := func() {
		if len(group) == 0 {
			return
		}
		selectors = append(selectors, buildSelector(group))
		group = nil
	}

	for {
		c := next()
		if c == block.EOFBlock {
			break
		}
		if isComma(c) {
			flush()
			continue
		}
		group = append(group, c)
	}
	flush()

	return selectors
}

func isComma(c *block.ConsumedBlock) bool {
	if c.Tag != block.TagComponent {
		return false
	}
	_, ok := c.Token().(*token.Comma)
	return ok
}

func buildSelector(group []*block.ConsumedBlock) Selector {
	var sb strings.Builder
	kind := KindOther
	kindSet := false

	for _, c := range group {
		text := renderToken(c)
		sb.WriteString(text)

		if kindSet {
			continue
		}
		if c.Tag != block.TagComponent {
			continue
		}
		switch tok := c.Token().(type) {
		case *token.Whitespace:
			continue
		case *token.Hash:
			kind, kindSet = KindID, true
		case *token.Delim:
			if tok.Value == "." {
				kind, kindSet = KindClass, true
			}
		case *token.Ident:
			kind, kindSet = KindTag, true
		default:
			kindSet = true
		}
	}

	return Selector{Text: strings.TrimSpace(sb.String()), Kind: kind}
}

// renderToken renders a single component/function/simple-block child
// back to approximate source text, in the style of
// ast.ComponentValues.String().
func renderToken(c *block.ConsumedBlock) string {
	switch c.Tag {
	case block.TagComponent:
		return c.Token().String()
	case block.TagFunction:
		var sb strings.Builder
		sb.WriteString(c.Header().String())
		for _, arg := range c.Args() {
			sb.WriteString(arg.Token().String())
		}
		sb.WriteString(")")
		return sb.String()
	case block.TagSimpleBlock:
		var sb strings.Builder
		for _, child := range c.Children() {
			sb.WriteString(renderToken(child))
		}
		return sb.String()
	default:
		return ""
	}
}
