package errortypes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	base := errors.New("connection refused")

	assert.Equal(t, "embedding failed: connection refused", EmbeddingError(base, "embedding failed").Error())
	assert.Equal(t, "connection refused", IndexError(base, "").Error())
	assert.Equal(t, "k must be positive", ValidationError(nil, "k must be positive").Error())
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("upsert batch 3: %w", IndexError(base, "writing documents"))

	assert.True(t, IsType(err, ErrorTypeIndex))
	assert.False(t, IsType(err, ErrorTypeEmbedding))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ErrorTypeIndex, TypeOf(err))
}

func TestIsTypeNested(t *testing.T) {
	inner := EmbeddingError(errors.New("timeout"), "embedding query")
	outer := IndexError(inner, "query")

	assert.True(t, IsType(outer, ErrorTypeIndex))
	assert.True(t, IsType(outer, ErrorTypeEmbedding))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeIndex))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}
