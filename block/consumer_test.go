package block_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsentry/cssguard/block"
	"github.com/mailsentry/cssguard/scanner"
	"github.com/mailsentry/cssguard/token"
)

func consumeString(t *testing.T, src string) (*block.ConsumedBlock, *block.ParseError) {
	t.Helper()
	a := block.NewArena(0)
	tz := scanner.New(bytes.NewReader([]byte(src)))
	return block.Consume(a, tz, logr.Discard())
}

func TestConsume_SimpleRule(t *testing.T) {
	top, err := consumeString(t, `p { color: red }`)
	require.Nil(t, err)
	require.Equal(t, block.TagTop, top.Tag)
	require.Len(t, top.Children(), 1)

	rule := top.Children()[0]
	require.Equal(t, block.TagQualifiedRule, rule.Tag)

	children := rule.Children()
	require.Len(t, children, 2)
	assert.Equal(t, block.TagComponent, children[0].Tag)
	assert.Equal(t, "p", children[0].Token().String())
	assert.Equal(t, block.TagSimpleBlock, children[1].Tag)

	decl := children[1].Children()
	require.Len(t, decl, 3)
	assert.Equal(t, "color", decl[0].Token().String())
	assert.Equal(t, ":", decl[1].Token().String())
	assert.Equal(t, "red", decl[2].Token().String())
}

func TestConsume_HashColor(t *testing.T) {
	top, err := consumeString(t, `em { color: #f00 }`)
	require.Nil(t, err)
	rule := top.Children()[0]
	block_ := rule.Children()[1]
	decl := block_.Children()
	require.Len(t, decl, 3)
	hash, ok := decl[2].Token().(*token.Hash)
	require.True(t, ok)
	assert.Equal(t, "f00", hash.Value)
}

func TestConsume_FunctionArguments(t *testing.T) {
	top, err := consumeString(t, `* { color: hsl(0, 100%, 50%) !important }`)
	require.Nil(t, err)
	rule := top.Children()[0]
	sb := rule.Children()[1]

	var fn *block.ConsumedBlock
	for _, c := range sb.Children() {
		if c.Tag == block.TagFunction {
			fn = c
		}
	}
	require.NotNil(t, fn)
	assert.Equal(t, "hsl(", fn.Header().String())
	require.Len(t, fn.Args(), 3)
	for _, arg := range fn.Args() {
		assert.Equal(t, block.TagFunctionArg, arg.Tag)
	}
}

func TestConsume_CDOCDCAtTopLevel(t *testing.T) {
	top, err := consumeString(t, "<!-- p { x: 1 } -->")
	require.Nil(t, err)
	require.Len(t, top.Children(), 1)
	assert.Equal(t, block.TagQualifiedRule, top.Children()[0].Tag)
}

func TestConsume_AtRuleDroppedByAssemblerButPresentInTree(t *testing.T) {
	top, err := consumeString(t, `@media print { p { x: 1 } }`)
	require.Nil(t, err)
	require.Len(t, top.Children(), 1)
	assert.Equal(t, block.TagAtRule, top.Children()[0].Tag)
}

func TestConsume_BadNesting(t *testing.T) {
	src := strings.Repeat("{", 21) + strings.Repeat("}", 21)
	_, err := consumeString(t, src)
	require.NotNil(t, err)
	assert.Equal(t, block.ErrBadNesting, err.Kind)
}

func TestConsume_UnterminatedFunctionIsTolerant(t *testing.T) {
	top, err := consumeString(t, `p { color: rgba(0,0,255,0.5`)
	require.Nil(t, err)
	require.Len(t, top.Children(), 1)
}

func TestConsume_ColorsCorpus(t *testing.T) {
	top, err := consumeString(t, `p { color: rgb(100%, 50%, 0%); opacity: 0.5; }`)
	require.Nil(t, err)
	require.Len(t, top.Children(), 1)

	data, marshalErr := json.Marshal(top)
	require.NoError(t, marshalErr)
	assert.Contains(t, string(data), `"type":"top"`)
}

func TestAttachChild_RejectsLeafTags(t *testing.T) {
	a := block.NewArena(0)
	component := block.NewComponent(a, &token.Ident{Value: "x"})
	other := block.NewComponent(a, &token.Ident{Value: "y"})
	assert.False(t, component.AttachChild(other))
}

func TestAttachFunctionArg_RejectsNonFunction(t *testing.T) {
	a := block.NewArena(0)
	top := block.NewTop(a)
	arg := block.NewFunctionArg(a, &token.Ident{Value: "x"})
	assert.False(t, top.AttachFunctionArg(arg))
}

func TestTreeShape_MaxDepth(t *testing.T) {
	src := strings.Repeat("{", 19) + strings.Repeat("}", 19)
	top, err := consumeString(t, src)
	require.Nil(t, err)

	depth := maxDepth(top)
	assert.LessOrEqual(t, depth, block.MaxRecursionDepth)
}

func maxDepth(b *block.ConsumedBlock) int {
	children := b.Children()
	if b.Tag == block.TagFunction {
		children = b.Args()
	}
	if len(children) == 0 {
		return 0
	}
	max := 0
	for _, c := range children {
		if d := maxDepth(c); d > max {
			max = d
		}
	}
	return max + 1
}

func TestFirstRuleChildren(t *testing.T) {
	a := block.NewArena(0)
	next := block.FirstRuleChildren(a, []byte(`p, .x { color: red }`))

	var got []string
	for {
		c := next()
		if c == block.EOFBlock {
			break
		}
		if c.Tag == block.TagComponent {
			got = append(got, c.Token().String())
		} else {
			got = append(got, c.Tag.String())
		}
	}
	assert.Equal(t, []string{"p", ",", ".", "x", "simple block"}, got)
}

func TestFirstRuleChildren_NoRules(t *testing.T) {
	a := block.NewArena(0)
	next := block.FirstRuleChildren(a, []byte(`   `))
	assert.Equal(t, block.EOFBlock, next())
}
