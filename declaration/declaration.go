// Package declaration implements a shallow, non-conformant CSS
// declaration-block parser. It splits on the leading colon, renders
// the value tokens back to text, and strips a trailing "!important"
// flag.
package declaration

import (
	"strings"

	"github.com/mailsentry/cssguard/block"
	"github.com/mailsentry/cssguard/token"
)

// Declarations is a property-name -> rendered-value mapping, with an
// "important" flag per property.
type Declarations struct {
	Values    map[string]string
	Important map[string]bool
}

// Parse consumes a declaration-body functor — the children of a
// qualified rule's trailing simple block — and returns the parsed
// declaration set, or nil if no declaration could be recognized.
func Parse(next func() *block.ConsumedBlock) *Declarations {
	d := &Declarations{Values: map[string]string{}, Important: map[string]bool{}}
	found := false

	var pending []*block.ConsumedBlock
	flushDecl := func() {
		if len(pending) == 0 {
			return
		}
		if name, value, important, ok := parseOne(pending); ok {
			d.Values[name] = value
			d.Important[name] = important
			found = true
		}
		pending = nil
	}

	for {
		c := next()
		if c == block.EOFBlock {
			break
		}
		if isSemicolon(c) {
			flushDecl()
			continue
		}
		pending = append(pending, c)
	}
	flushDecl()

	if !found {
		return nil
	}
	return d
}

func isSemicolon(c *block.ConsumedBlock) bool {
	if c.Tag != block.TagComponent {
		return false
	}
	_, ok := c.Token().(*token.Semicolon)
	return ok
}

// parseOne splits a single declaration's children on its first colon
// and strips a trailing "!important" flag. A bare "important" with no
// leading "!" is left as an ordinary value token rather than a flag;
// see DESIGN.md.
func parseOne(children []*block.ConsumedBlock) (name, value string, important, ok bool) {
	i := 0
	for i < len(children) && isWhitespace(children[i]) {
		i++
	}
	if i >= len(children) {
		return "", "", false, false
	}

	ident, isIdent := children[i].Token().(*token.Ident)
	if children[i].Tag != block.TagComponent || !isIdent {
		return "", "", false, false
	}
	name = ident.Value
	i++

	for i < len(children) && isWhitespace(children[i]) {
		i++
	}
	if i >= len(children) || !isColon(children[i]) {
		return "", "", false, false
	}
	i++

	values := children[i:]
	values, important = cleanImportantFlag(values)

	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(renderToken(v))
	}
	value = strings.TrimSpace(sb.String())

	return name, value, important, true
}

func isWhitespace(c *block.ConsumedBlock) bool {
	if c.Tag != block.TagComponent {
		return false
	}
	_, ok := c.Token().(*token.Whitespace)
	return ok
}

func isColon(c *block.ConsumedBlock) bool {
	if c.Tag != block.TagComponent {
		return false
	}
	_, ok := c.Token().(*token.Colon)
	return ok
}

// cleanImportantFlag trims trailing whitespace, then checks whether the
// last two non-whitespace tokens are a delim "!" immediately followed
// by a case-insensitive "important" ident. If so it strips them and
// reports important=true.
func cleanImportantFlag(values []*block.ConsumedBlock) ([]*block.ConsumedBlock, bool) {
	end := len(values)
	for end > 0 && isWhitespace(values[end-1]) {
		end--
	}
	if end < 2 {
		return values, false
	}

	ident, isIdent := values[end-1].Token().(*token.Ident)
	if values[end-1].Tag != block.TagComponent || !isIdent || !strings.EqualFold(ident.Value, "important") {
		return values, false
	}

	j := end - 2
	for j > 0 && isWhitespace(values[j]) {
		j--
	}
	delim, isDelim := values[j].Token().(*token.Delim)
	if values[j].Tag != block.TagComponent || !isDelim || delim.Value != "!" {
		return values, false
	}

	return values[:j], true
}

func renderToken(c *block.ConsumedBlock) string {
	switch c.Tag {
	case block.TagComponent:
		return c.Token().String()
	case block.TagFunction:
		var sb strings.Builder
		sb.WriteString(c.Header().String())
		for i, arg := range c.Args() {
			if i > 0 {
				sb.WriteString(" ")
			}
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
