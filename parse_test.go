package cssguard_test

import (
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cssguard "github.com/mailsentry/cssguard"
	"github.com/mailsentry/cssguard/block"
)

func TestParse_SimpleRule(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`p { color: red }`))
	require.NoError(t, err)
	require.NotNil(t, ss)

	decls := (*ss)["p"]
	require.NotNil(t, decls)
	assert.Equal(t, "red", decls.Values["color"])
}

func TestParse_AtRuleIgnoredByAssembler(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`@media print { p { x: 1 } }`))
	require.NoError(t, err)
	assert.Equal(t, 0, ss.Len())
}

func TestParse_MultipleSelectorsShareDeclarations(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`p, .foo { color: red }`))
	require.NoError(t, err)
	require.Equal(t, 2, ss.Len())
	assert.Same(t, (*ss)["p"], (*ss)[".foo"])
}

func TestParse_BadNesting(t *testing.T) {
	a := block.NewArena(0)
	src := strings.Repeat("{", 21) + strings.Repeat("}", 21)
	ss, err := cssguard.Parse(a, []byte(src))
	require.Error(t, err)
	assert.Nil(t, ss)

	var perr *cssguard.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, cssguard.ErrBadNesting, perr.Kind)
}

func TestParse_InvalidSyntaxOnNoRules(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`   `))
	require.Error(t, err)
	assert.Nil(t, ss)

	var perr *cssguard.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, cssguard.ErrInvalidSyntax, perr.Kind)
}

func TestParse_ColorsCorpus(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`p { color: rgb(100%, 50%, 0%); opacity: 0.5; }`))
	require.NoError(t, err)
	require.Equal(t, 1, ss.Len())
}

func TestParse_WithLogger(t *testing.T) {
	a := block.NewArena(0)
	ss, err := cssguard.Parse(a, []byte(`p { color: red }`), cssguard.WithLogger(logr.Discard()))
	require.NoError(t, err)
	require.Equal(t, 1, ss.Len())
}
