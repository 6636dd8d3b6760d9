package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got := h.Hash([]byte("hello world"))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
	assert.Equal(t, got, h.Hash([]byte("hello world")))
	assert.NotEqual(t, got, h.Hash([]byte("[]")))
}
