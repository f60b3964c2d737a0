package block

import (
	"bytes"

	"github.com/go-logr/logr"

	"github.com/mailsentry/cssguard/scanner"
	"github.com/mailsentry/cssguard/token"
)

// MaxRecursionDepth is the hard structural-nesting limit shared by the
// five consumers. It bounds stack usage and tree depth regardless of
// how deeply an adversarial input tries to nest brackets or
// functions.
const MaxRecursionDepth = 20

// Tokenizer is the contract the consumer needs from its token
// source: a lazy token stream with one-token LIFO pushback.
// *scanner.Tokenizer satisfies this.
type Tokenizer interface {
	NextToken() token.Token
	Pushback(token.Token)
}

// endKind identifies which closing bracket a simpleBlockConsumer call
// is waiting for; the three bracket pairs share one consumer and
// differ only in this value.
type endKind int

const (
	endRBrace endKind = iota
	endRParen
	endRBrack
)

func isEnd(tok token.Token, end endKind) bool {
	switch end {
	case endRBrace:
		_, ok := tok.(*token.RBrace)
		return ok
	case endRParen:
		_, ok := tok.(*token.RParen)
		return ok
	case endRBrack:
		_, ok := tok.(*token.RBrack)
		return ok
	default:
		return false
	}
}

// consumer carries the state the five mutually recursive consumers
// share: the token source, the recursion counter, the eof flag, a
// logging sink, and the first error observed.
type consumer struct {
	arena *Arena
	tok   Tokenizer
	log   logr.Logger

	rec int
	eof bool
	err *ParseError
}

// enter bumps the shared recursion counter and fails fast with
// BAD_NESTING once it crosses MaxRecursionDepth. Every consumer except
// the consume_current path of simpleBlockConsumer calls this on entry.
func (c *consumer) enter() bool {
	c.rec++
	if c.rec > MaxRecursionDepth {
		if c.err == nil {
			c.err = &ParseError{Kind: ErrBadNesting, Message: "max nesting reached, ignoring style"}
		}
		return false
	}
	return true
}

func (c *consumer) leave() { c.rec-- }

// Consume runs the block consumer over tok and returns the top node
// of the resulting tree. The returned tree is always non-nil; it may
// be partial when err is non-nil (a BAD_NESTING failure discards the
// subtree that tripped the guard but preserves already-attached
// siblings).
func Consume(a *Arena, tok Tokenizer, log logr.Logger) (*ConsumedBlock, *ParseError) {
	c := &consumer{arena: a, tok: tok, log: log}
	top := NewTop(a)
	c.consumeBlocks(top)
	return top, c.err
}

// FirstRuleChildren re-parses source from scratch and returns a
// zero-argument functor over the first top-level rule's children — the
// shape the selector and declaration parsers consume. A convenience
// for callers that need to treat an arbitrary CSS snippet (e.g. the
// body of a custom property) as a selector/declaration token source
// outside of a full Parse call.
func FirstRuleChildren(a *Arena, source []byte) func() *ConsumedBlock {
	tz := scanner.New(bytes.NewReader(source))
	top, _ := Consume(a, tz, logr.Discard())

	rules := top.Children()
	if len(rules) == 0 {
		return func() *ConsumedBlock { return EOFBlock }
	}

	children := rules[0].Children()
	i := 0
	return func() *ConsumedBlock {
		if i >= len(children) {
			return EOFBlock
		}
		next := children[i]
		i++
		return next
	}
}

// consumeBlocks is the top-level driver: dispatch on at-keyword vs.
// everything else, repeatedly, until eof or a consumer fails.
func (c *consumer) consumeBlocks(top *ConsumedBlock) {
	ret := true
	for ret && !c.eof {
		tok := c.tok.NextToken()
		switch tok.(type) {
		case *token.Whitespace:
		case *token.CDO, *token.CDC:
			// HTML comment delimiters between top-level rules are
			// stripped rather than starting a rule of their own.
		case *token.EOF:
			c.eof = true
		case *token.AtKeyword:
			c.tok.Pushback(tok)
			ret = c.atRuleConsumer(top)
		default:
			c.tok.Pushback(tok)
			ret = c.qualifiedRuleConsumer(top)
		}
	}
}

// qualifiedRuleConsumer consumes a single qualified rule.
func (c *consumer) qualifiedRuleConsumer(top *ConsumedBlock) bool {
	c.log.V(2).Info("consume qualified rule", "parent", top.Tag.String(), "recursion", c.rec)

	if !c.enter() {
		return false
	}
	defer c.leave()

	block := NewQualifiedRule(c.arena)
	ret, wantMore := true, true

	for ret && wantMore && !c.eof {
		tok := c.tok.NextToken()
		switch tok.(type) {
		case *token.EOF:
			c.eof = true
		case *token.CDO, *token.CDC:
			// Permitted (and ignored) between top-level rules. In a
			// non-top context the source this is ported from silently
			// discards the token rather than pushing it back and
			// terminating; that observed behavior is kept as-is.
		case *token.LBrace:
			ret = c.simpleBlockConsumer(block, endRBrace, false)
			wantMore = false
		case *token.Whitespace:
		default:
			c.tok.Pushback(tok)
			ret = c.componentValueConsumer(block)
		}
	}

	// Single-level attachment policy: nested qualified rules (not
	// legal CSS, but reachable from malformed input) are dropped
	// silently since only top-level rules matter downstream.
	if ret && top.Tag == TagTop {
		top.AttachChild(block)
	}

	return ret
}

// atRuleConsumer consumes a single at-rule: identical to
// qualifiedRuleConsumer but also terminates on a bare semicolon.
func (c *consumer) atRuleConsumer(top *ConsumedBlock) bool {
	c.log.V(2).Info("consume at-rule", "parent", top.Tag.String(), "recursion", c.rec)

	if !c.enter() {
		return false
	}
	defer c.leave()

	block := NewAtRule(c.arena)
	ret, wantMore := true, true

	for ret && wantMore && !c.eof {
		tok := c.tok.NextToken()
		switch tok.(type) {
		case *token.EOF:
			c.eof = true
		case *token.CDO, *token.CDC:
			// See qualifiedRuleConsumer.
		case *token.LBrace:
			ret = c.simpleBlockConsumer(block, endRBrace, false)
			wantMore = false
		case *token.Whitespace:
		case *token.Semicolon:
			wantMore = false
		default:
			c.tok.Pushback(tok)
			ret = c.componentValueConsumer(block)
		}
	}

	if ret && top.Tag == TagTop {
		top.AttachChild(block)
	}

	return ret
}

// simpleBlockConsumer consumes a balanced {}, (), or [] group. When
// consumeCurrent is true the caller already allocated and owns target
// (componentValueConsumer creates it for the opening bracket it just
// read) and target is filled directly; the recursion counter is not
// bumped in that case, since the caller already accounted for the frame.
func (c *consumer) simpleBlockConsumer(target *ConsumedBlock, end endKind, consumeCurrent bool) bool {
	c.log.V(2).Info("consume simple block", "parent", target.Tag.String(), "recursion", c.rec)

	if !consumeCurrent {
		if !c.enter() {
			return false
		}
		defer c.leave()
	}

	var blk *ConsumedBlock
	if consumeCurrent {
		blk = target
	} else {
		blk = NewSimpleBlock(c.arena)
	}

	ret := true
	for ret && !c.eof {
		tok := c.tok.NextToken()
		if isEnd(tok, end) {
			break
		}
		switch tok.(type) {
		case *token.EOF:
			c.eof = true
		case *token.Whitespace:
		default:
			c.tok.Pushback(tok)
			ret = c.componentValueConsumer(blk)
		}
	}

	if !consumeCurrent && ret {
		target.AttachChild(blk)
	}

	return ret
}

// componentValueConsumer pulls exactly one component value and
// dispatches on it. The caller is responsible for looping; this
// consumer attaches at most one child to top.
func (c *consumer) componentValueConsumer(top *ConsumedBlock) bool {
	c.log.V(2).Info("consume component value", "parent", top.Tag.String(), "recursion", c.rec)

	if !c.enter() {
		return false
	}
	defer c.leave()

	var blk *ConsumedBlock
	ret, needMore := true, true

	for ret && needMore && !c.eof {
		tok := c.tok.NextToken()
		switch t := tok.(type) {
		case *token.EOF:
			c.eof = true
		case *token.LBrace:
			blk = NewSimpleBlock(c.arena)
			ret = c.simpleBlockConsumer(blk, endRBrace, true)
			needMore = false
		case *token.LParen:
			blk = NewSimpleBlock(c.arena)
			ret = c.simpleBlockConsumer(blk, endRParen, true)
			needMore = false
		case *token.LBrack:
			blk = NewSimpleBlock(c.arena)
			ret = c.simpleBlockConsumer(blk, endRBrack, true)
			needMore = false
		case *token.Whitespace:
			// Skip and re-loop for exactly one component; if only
			// whitespace precedes eof, the eof branch on the next
			// iteration ends the loop and nothing is attached.
		case *token.Function:
			blk = NewFunction(c.arena, t)
			ret = c.functionConsumer(blk)
			needMore = false
		default:
			blk = NewComponent(c.arena, tok)
			needMore = false
		}
	}

	if ret && blk != nil {
		top.AttachChild(blk)
	}

	return ret
}

// functionConsumer fills a function node (header already set) with
// its argument tokens. Arguments are concatenated without explicit
// separator nodes for comma/delim/open-paren tokens; a caller that
// needs comma-separated arguments re-parses them.
//
// A function token encountered here (nested function call) is
// flattened into a plain FunctionArg rather than recursed into — a
// known limitation preserved from the source this consumer is ported
// from: an argument like calc(var(--x) + 1px) loses its nested
// structure.
func (c *consumer) functionConsumer(top *ConsumedBlock) bool {
	c.log.V(2).Info("consume function", "recursion", c.rec)

	if !c.enter() {
		return false
	}
	defer c.leave()

	ret, wantMore := true, true
	for ret && wantMore && !c.eof {
		tok := c.tok.NextToken()
		switch tok.(type) {
		case *token.EOF:
			c.eof = true
		case *token.RParen:
			wantMore = false
		case *token.Whitespace, *token.Comma, *token.Delim, *token.LParen:
			// Skipped; see doc comment above.
		default:
			top.AttachFunctionArg(NewFunctionArg(c.arena, tok))
		}
	}

	return ret
}
