package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeState, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeFormat, http.StatusUnprocessableEntity},
		{CodeSynthesis, http.StatusBadGateway},
		{CodeStorage, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesOnCode(t *testing.T) {
	err := NoChaptersFound("nothing usable in bundle")

	assert.True(t, Is(err, ErrFormat))
	assert.False(t, Is(err, ErrSynthesis))
	assert.Equal(t, ReasonNoChaptersFound, err.Reason())
}

func TestError_WrapKeepsCause(t *testing.T) {
	wrapped := Wrap(io.ErrUnexpectedEOF, CodeStorage, "write manifest")

	assert.True(t, Is(wrapped, io.ErrUnexpectedEOF))
	assert.True(t, Is(wrapped, ErrStorage))
	assert.Equal(t, "write manifest: unexpected EOF", wrapped.Error())
}

func TestError_SurvivesFmtWrapping(t *testing.T) {
	inner := MalformedXML("package document", io.EOF)
	outer := fmt.Errorf("parse epub: %w", inner)

	var domainErr *Error
	require.True(t, As(outer, &domainErr))
	assert.Equal(t, CodeFormat, domainErr.Code)
	assert.Equal(t, ReasonMalformedXML, domainErr.Reason())
	assert.True(t, Is(outer, io.EOF))
}

func TestError_WithDetailsDoesNotMutate(t *testing.T) {
	base := Validation("bad input")
	detailed := base.WithDetails(map[string]string{"title": "is required"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, detailed.Details)
	assert.Empty(t, detailed.Reason())
}
