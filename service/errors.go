package service

import (
	"errors"
	"fmt"
)

var (
	ErrRetrievalFailed = errors.New("failed to retrieve evidence")
	ErrNoJSON          = errors.New("no valid JSON object in model response")
	ErrEmptyResponse   = errors.New("model returned empty content")
	ErrRunNotFound     = errors.New("audit run not found")
	ErrCatalogNotSet   = errors.New("catalog not set")
	ErrAuditorNotSet   = errors.New("field auditor not set")
	ErrSearcherNotSet  = errors.New("evidence searcher not set")
	ErrCompleterNotSet = errors.New("model completer not set")
)

// ModelError wraps transport, auth and rate-limit failures of the model collaborator
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ParseError reports that no structured object could be recovered from raw model text.
// Offset is always 0: the failure concerns the whole response, not a position in it.
type ParseError struct {
	Raw    string
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v (offset %d, %d bytes)", ErrNoJSON, e.Offset, len(e.Raw))
}

func (e *ParseError) Unwrap() error { return ErrNoJSON }
