// Package cssguard parses a CSS source fragment — typically extracted
// from an HTML email's <style> element or a style="…" attribute — into
// a style sheet of selector groups and declaration blocks, tolerant of
// the malformed and adversarial input spam-authored markup tends to
// contain. The block consumer (package block) is the core; this
// package wires the tokenizer, the block consumer, and the selector and
// declaration parsers together and assembles the result into a
// stylesheet.StyleSheet.
package cssguard

import (
	"bytes"

	"github.com/go-logr/logr"

	"github.com/mailsentry/cssguard/block"
	"github.com/mailsentry/cssguard/declaration"
	"github.com/mailsentry/cssguard/scanner"
	"github.com/mailsentry/cssguard/selector"
	"github.com/mailsentry/cssguard/stylesheet"
)

// Parse tokenizes and parses source, returning the resulting style
// sheet. The arena is borrowed, not owned, and must outlive the call;
// callers scanning many messages may reuse one arena across parses or
// create a fresh one per parse.
//
// Parse returns a *block.ParseError with Kind block.ErrBadNesting when
// the recursion guard tripped and no partial sheet could be salvaged,
// and Kind block.ErrInvalidSyntax when no rules could be recognized.
func Parse(a *block.Arena, source []byte, opts ...Option) (*stylesheet.StyleSheet, error) {
	cfg := newConfig(opts)

	tz := scanner.New(bytes.NewReader(source))
	top, perr := block.Consume(a, tz, cfg.log)

	rules := top.Children()
	if len(rules) == 0 {
		if perr != nil {
			return nil, perr
		}
		return nil, &block.ParseError{Kind: block.ErrInvalidSyntax, Message: "cannot parse input"}
	}

	ss := stylesheet.New()
	for _, rule := range rules {
		assembleRule(rule, ss, cfg.log)
	}

	return &ss, nil
}

// assembleRule implements the rule-assembly walk: for a top-level
// qualified rule whose children begin with at least one component and
// contain a simple block, partition on the first simple block, parse
// the preamble as selectors and the block's children as declarations,
// and associate the declarations with every selector produced.
// At-rule children are ignored — no @media/@supports interpretation
// is performed.
func assembleRule(rule *block.ConsumedBlock, ss stylesheet.StyleSheet, log logr.Logger) {
	if rule.Tag != block.TagQualifiedRule {
		return
	}

	children := rule.Children()
	if len(children) < 2 || children[0].Tag != block.TagComponent {
		return
	}

	split := -1
	for i, c := range children {
		if c.Tag == block.TagSimpleBlock {
			split = i
			break
		}
	}
	if split < 0 {
		return
	}

	preamble := children[:split]
	body := children[split]

	selectors := selector.Parse(childFunctor(preamble))
	if len(selectors) == 0 {
		return
	}

	decls := declaration.Parse(childFunctor(body.Children()))
	if decls == nil {
		return
	}

	log.V(1).Info("processed rule", "selectors", len(selectors))
	for _, sel := range selectors {
		ss.AddSelectorRule(sel.Text, decls)
	}
}

// childFunctor adapts a plain child slice into the zero-argument
// functor shape the selector and declaration parsers expect as input.
func childFunctor(children []*block.ConsumedBlock) func() *block.ConsumedBlock {
	i := 0
	return func() *block.ConsumedBlock {
		if i >= len(children) {
			return block.EOFBlock
		}
		c := children[i]
		i++
		return c
	}
}
