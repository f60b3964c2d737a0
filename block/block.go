// Package block implements the CSS block consumer: a recursive-descent
// state machine that groups a token stream into a tree of consumed
// blocks (qualified rules, at-rules, simple blocks, functions, and
// components). This is the core of cssguard — the part that turns a
// raw, possibly-malformed CSS fragment into a structure the selector
// and declaration parsers can walk.
package block

import (
	"encoding/json"

	"github.com/mailsentry/cssguard/arena"
	"github.com/mailsentry/cssguard/token"
)

// Tag discriminates the consumed-block node kinds.
type Tag int

const (
	TagTop Tag = iota
	TagQualifiedRule
	TagAtRule
	TagSimpleBlock
	TagFunction
	TagFunctionArg
	TagComponent
	TagEOF
)

// String returns the human name used by MarshalJSON's "type" field.
func (t Tag) String() string {
	switch t {
	case TagTop:
		return "top"
	case TagQualifiedRule:
		return "qualified rule"
	case TagAtRule:
		return "at rule"
	case TagSimpleBlock:
		return "simple block"
	case TagFunction:
		return "function"
	case TagFunctionArg:
		return "function arg"
	case TagComponent:
		return "component"
	case TagEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// ConsumedBlock is the tagged tree node the block consumer builds.
// Only one of its payload fields is meaningful for a given Tag:
// Top/QualifiedRule/AtRule/SimpleBlock hold children, Function holds
// a header token plus argument children, and Component/FunctionArg
// hold a single token. Go has no sum types, so the shape is enforced
// at runtime by AttachChild/AttachFunctionArg rather than by the type
// system.
type ConsumedBlock struct {
	Tag Tag

	children []*ConsumedBlock // Top, QualifiedRule, AtRule, SimpleBlock
	tok      token.Token      // Component, FunctionArg
	header   token.Token      // Function only
	args     []*ConsumedBlock // Function only
}

// EOFBlock is the one global, immutable end-of-block sentinel a
// selector/declaration token functor returns once its child list is
// exhausted.
var EOFBlock = &ConsumedBlock{Tag: TagEOF}

// Arena allocates ConsumedBlock values out of growable slabs instead
// of one heap object per node.
type Arena = arena.Arena[ConsumedBlock]

// NewArena returns a fresh Arena with the given slab size (0 for the
// package default).
func NewArena(slabSize int) *Arena {
	return arena.New[ConsumedBlock](slabSize)
}

func newNode(a *Arena, tag Tag) *ConsumedBlock {
	b := a.Alloc()
	*b = ConsumedBlock{Tag: tag}
	return b
}

// NewTop returns a fresh, empty top node.
func NewTop(a *Arena) *ConsumedBlock { return newNode(a, TagTop) }

// NewQualifiedRule returns a fresh, empty qualified-rule node.
func NewQualifiedRule(a *Arena) *ConsumedBlock { return newNode(a, TagQualifiedRule) }

// NewAtRule returns a fresh, empty at-rule node.
func NewAtRule(a *Arena) *ConsumedBlock { return newNode(a, TagAtRule) }

// NewSimpleBlock returns a fresh, empty simple-block node.
func NewSimpleBlock(a *Arena) *ConsumedBlock { return newNode(a, TagSimpleBlock) }

// NewComponent returns a component node wrapping tok.
func NewComponent(a *Arena, tok token.Token) *ConsumedBlock {
	b := newNode(a, TagComponent)
	b.tok = tok
	return b
}

// NewFunctionArg returns a function-argument node wrapping tok.
func NewFunctionArg(a *Arena, tok token.Token) *ConsumedBlock {
	b := newNode(a, TagFunctionArg)
	b.tok = tok
	return b
}

// NewFunction returns a function node with its header already set and
// an empty argument list.
func NewFunction(a *Arena, header token.Token) *ConsumedBlock {
	b := newNode(a, TagFunction)
	b.header = header
	return b
}

// Children returns the node's child list. Only meaningful for
// Top/QualifiedRule/AtRule/SimpleBlock nodes; nil otherwise.
func (b *ConsumedBlock) Children() []*ConsumedBlock { return b.children }

// Token returns the node's single token. Only meaningful for
// Component/FunctionArg nodes; nil otherwise.
func (b *ConsumedBlock) Token() token.Token { return b.tok }

// Header returns the function-header token. Only meaningful for
// Function nodes; nil otherwise.
func (b *ConsumedBlock) Header() token.Token { return b.header }

// Args returns the function's argument children. Only meaningful for
// Function nodes; nil otherwise.
func (b *ConsumedBlock) Args() []*ConsumedBlock { return b.args }

// AttachChild attaches child to b's child list. It returns false
// without modifying b if b's tag does not hold a child list.
func (b *ConsumedBlock) AttachChild(child *ConsumedBlock) bool {
	switch b.Tag {
	case TagTop, TagQualifiedRule, TagAtRule, TagSimpleBlock:
		b.children = append(b.children, child)
		return true
	default:
		return false
	}
}

// AttachFunctionArg appends arg to b's argument list. It returns false
// without modifying b unless b is a Function node.
func (b *ConsumedBlock) AttachFunctionArg(arg *ConsumedBlock) bool {
	if b.Tag != TagFunction {
		return false
	}
	b.args = append(b.args, arg)
	return true
}

type debugWire struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type debugFunctionRecord struct {
	Token     string           `json:"token"`
	Arguments []*ConsumedBlock `json:"arguments"`
}

var emptyValue = json.RawMessage(`"empty"`)

// MarshalJSON renders the node in the "{"type":...,"value":...}" debug
// shape, used for diagnostic logging and by the test suite.
func (b *ConsumedBlock) MarshalJSON() ([]byte, error) {
	w := debugWire{Type: b.Tag.String()}

	switch b.Tag {
	case TagTop, TagQualifiedRule, TagAtRule, TagSimpleBlock:
		if len(b.children) == 0 {
			w.Value = emptyValue
		} else {
			v, err := json.Marshal(b.children)
			if err != nil {
				return nil, err
			}
			w.Value = v
		}
	case TagFunction:
		v, err := json.Marshal(debugFunctionRecord{
			Token:     b.header.String(),
			Arguments: b.args,
		})
		if err != nil {
			return nil, err
		}
		w.Value = v
	case TagComponent, TagFunctionArg:
		v, err := json.Marshal(b.tok.String())
		if err != nil {
			return nil, err
		}
		w.Value = v
	default: // TagEOF
		w.Value = emptyValue
	}

	return json.Marshal(w)
}
