package api

import (
	"errors"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/http/response"
)

// EnvelopeVersion is the "v" field of every JSON response.
const EnvelopeVersion = response.Version

// EnvelopeTransformer wraps huma response bodies in the same envelope the
// plain chi handlers write, so clients parse one shape everywhere.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)

	if code < 400 {
		return response.Envelope{V: EnvelopeVersion, Success: true, Data: v}, nil
	}

	env := response.Envelope{V: EnvelopeVersion}
	var (
		apiErr    *APIError
		domainErr *domainerrors.Error
	)
	if errors.As(asError(v), &domainErr) {
		apiErr = fromDomainError(domainErr)
	}
	switch {
	case apiErr != nil || errors.As(asError(v), &apiErr):
		env.Error = apiErr.Message
		env.Code = apiErr.Code
		env.Reason = apiErr.Reason
		env.Details = apiErr.Details
	case asError(v) != nil:
		env.Error = asError(v).Error()
		env.Code = statusToCode(code)
	default:
		env.Error = "request failed"
		env.Code = statusToCode(code)
		env.Details = v
	}
	return env, nil
}

func asError(v any) error {
	err, _ := v.(error)
	return err
}
