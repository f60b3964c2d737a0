package arena_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mailsentry/cssguard/arena"
)

func TestArena_AllocAcrossSlabs(t *testing.T) {
	a := arena.New[int](4)

	var ptrs []*int
	for i := 0; i < 10; i++ {
		p := a.Alloc()
		*p = i
		ptrs = append(ptrs, p)
	}

	require.Equal(t, 10, a.Len())
	for i, p := range ptrs {
		require.Equal(t, i, *p)
	}
}

func TestArena_DefaultSlabSize(t *testing.T) {
	a := arena.New[string](0)
	p := a.Alloc()
	*p = "hello"
	require.Equal(t, "hello", *p)
	require.Equal(t, 1, a.Len())
}
