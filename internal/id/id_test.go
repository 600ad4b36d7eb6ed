package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for range count {
		id, err := Generate("test")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestNewBookID(t *testing.T) {
	id, err := NewBookID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "book-"))
	assert.Len(t, id, len("book-")+21)
	assert.True(t, Valid(id), "generated IDs must be path safe: %s", id)
}

func TestValid(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"book-V1StGXR8_Z5jdHi6B-myT", true},
		{"legacy_42", true},
		{"", false},
		{"..", false},
		{"../etc", false},
		{"a/b", false},
		{`a\b`, false},
		{"book id", false},
		{strings.Repeat("x", 129), false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, Valid(tt.id))
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate("job")
		assert.True(t, strings.HasPrefix(id, "job-"))
	})
}
