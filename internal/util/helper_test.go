package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte{1, 2, 3}

	c := CloneSlice(src, 0)
	assert.Equal(t, src, c)
	c[0] = 9
	assert.Equal(t, byte(1), src[0])

	assert.Equal(t, []byte{1, 2}, CloneSlice(src, 2))
	assert.Equal(t, []byte{1, 2, 3, 0}, CloneSlice(src, 4))
	assert.Empty(t, CloneSlice([]byte(nil), 0))
}
