package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoInput means the selected modality has no payload yet; callers wait rather than fail.
	ErrNoInput           = errors.New("no input provided")
	ErrInputMalformed    = errors.New("malformed input")
	ErrUploadIO          = errors.New("upload staging failed")
	ErrMissingCredential = errors.New("credential not configured")
	ErrExternalService   = errors.New("external service failed")
	ErrEmptyResult       = errors.New("nothing to summarize")
)

// Wrap tags err with kind so errors.Is matches both.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// ErrorKind names the taxonomy bucket of err for responses and the run ledger.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoInput):
		return "no_input"
	case errors.Is(err, ErrInputMalformed):
		return "input_malformed"
	case errors.Is(err, ErrUploadIO):
		return "upload_io"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	default:
		return "internal"
	}
}
