package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	a, err := Generate(PrefixBook)
	require.NoError(t, err)
	b := MustGenerate(PrefixBook)

	assert.NotEqual(t, a, b)
	assert.True(t, HasPrefix(a, PrefixBook))
	assert.Len(t, a, len("book-")+21)
}

func TestHasPrefix(t *testing.T) {
	assert.False(t, HasPrefix("book-", PrefixBook))
	assert.False(t, HasPrefix("user-abc", PrefixBook))
	assert.True(t, HasPrefix("user-abc", PrefixUser))
}
