// Package stylesheet models the output style sheet: a mapping from
// rendered selector text to a declaration set, generalized from an
// ast.StyleSheet/ast.Declarations AST shape into the selector-keyed
// map the block consumer's output is assembled into.
package stylesheet

import "github.com/mailsentry/cssguard/declaration"

// StyleSheet maps a selector's rendered text to its declarations. A
// single *declaration.Declarations may be referenced by more than one
// key when a rule lists multiple selectors sharing one declaration
// block.
type StyleSheet map[string]*declaration.Declarations

// New returns an empty style sheet.
func New() StyleSheet {
	return make(StyleSheet)
}

// AddSelectorRule associates decls with selectorText, overwriting any
// prior declarations for the same selector text.
func (s StyleSheet) AddSelectorRule(selectorText string, decls *declaration.Declarations) {
	s[selectorText] = decls
}

// Len reports the number of distinct selector keys.
func (s StyleSheet) Len() int { return len(s) }
