package cssguard

import "github.com/mailsentry/cssguard/block"

// ParseError and ErrKind are aliased from package block, which raises
// them directly. The alias keeps them reachable at the module root,
// where callers of Parse look for them, without letting package block
// depend back on this package.
type (
	ParseError = block.ParseError
	ErrKind    = block.ErrKind
)

const (
	ErrInvalidSyntax = block.ErrInvalidSyntax
	ErrBadNesting    = block.ErrBadNesting
)
