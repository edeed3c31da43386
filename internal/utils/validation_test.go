package utils

import (
	"testing"

	"github.com/localnerve/memebase/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Slug string `validate:"required,slug"`
	Kind string `validate:"omitempty,oneof=image gif video"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Slug: "funny-cats_2"}, "test"))

	err := ValidateStruct(sample{Slug: "Funny Cats", Kind: "audio"}, "test.validation")
	require.Error(t, err)
	se, ok := types.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 400, se.HTTPStatus())
	assert.Equal(t, "test.validation", se.ErrorType())
	assert.Contains(t, err.Error(), "Slug must be a lowercase slug")
	assert.Contains(t, err.Error(), "Kind must be one of: image gif video")
}

func TestIsSlug(t *testing.T) {
	assert.True(t, IsSlug("memes"))
	assert.True(t, IsSlug("a-b_c1"))
	assert.False(t, IsSlug(""))
	assert.False(t, IsSlug("-lead"))
	assert.False(t, IsSlug("UPPER"))
	assert.False(t, IsSlug("two  spaces"))
}

func TestValidateVar(t *testing.T) {
	assert.True(t, ValidateVar("dev@example.com", "email"))
	assert.False(t, ValidateVar("nope", "email"))
	assert.True(t, ValidateVar("https://example.com/a.png", "url"))
}
