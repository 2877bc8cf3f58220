package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are strings so they serialize naturally
// into run error info and HTTP responses.
type Kind string

const (
	// KindNotFound: a referenced input file does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidInput: an empty or malformed argument.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindSchema: a metrics file lacks required columns or holds values of the wrong type.
	KindSchema Kind = "SCHEMA_ERROR"
	// KindUpstream: the generative text service failed.
	KindUpstream Kind = "UPSTREAM_ERROR"
	// KindPackaging: building or publishing the package failed.
	KindPackaging Kind = "PACKAGING_ERROR"
	// KindConflict: another run holds the output root.
	KindConflict Kind = "CONFLICT"
	// KindInvalidConfig: required configuration is missing.
	KindInvalidConfig Kind = "INVALID_CONFIG"
	// KindInternal is reported for anything unclassified.
	KindInternal Kind = "INTERNAL"
)

// ErrTypeCoercion marks a metrics value that could not be converted to its column type.
var ErrTypeCoercion = errors.New("type coercion failed")

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error from a format string.
func E(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorInfo holds structured failure information for a run.
type ErrorInfo struct {
	FailedStep string `json:"failed_step"`
	Message    string `json:"message"`
	Kind       Kind   `json:"kind"`
	FailedAt   string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
