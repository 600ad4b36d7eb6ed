package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaginationParams(t *testing.T) {
	params := DefaultPaginationParams()
	assert.Equal(t, 100, params.Limit)
	assert.Empty(t, params.Cursor)
}

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name          string
		input         PaginationParams
		expectedLimit int
	}{
		{"valid parameters", PaginationParams{Limit: 50}, 50},
		{"zero limit should default to 100", PaginationParams{Limit: 0}, 100},
		{"negative limit should default to 100", PaginationParams{Limit: -10}, 100},
		{"limit over 1000 should cap at 1000", PaginationParams{Limit: 5000}, 1000},
		{"limit exactly 1000 should stay at 1000", PaginationParams{Limit: 1000}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.input
			params.Validate()
			assert.Equal(t, tt.expectedLimit, params.Limit)
		})
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)

	cursor := EncodeCursor(created, "book-abc")
	require.NotEmpty(t, cursor)

	gotTime, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, created.Equal(gotTime))
	assert.Equal(t, "book-abc", gotID)
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor(time.Now(), ""))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid base64", "not-valid-base64!!!"},
		{"missing separator", "Ym9vazowMDE="},
		{"bad timestamp", "eWVzdGVyZGF5fGJvb2stMQ=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeCursor(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	ts, id, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
	assert.Empty(t, id)
}
