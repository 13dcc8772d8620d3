// Package errs defines the closed set of failure kinds the ingestion, chat
// and deletion pipelines report. Adapters wrap their own errors with
// fmt.Errorf; orchestrators classify them here so callers can branch on the
// kind without inspecting provider- or driver-specific error values.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is any failure that does not fit another kind.
	KindInternal Kind = iota
	// KindValidation is a malformed or out-of-range request.
	KindValidation
	// KindNotFound covers both a missing row and a row owned by someone
	// else; the two are deliberately indistinguishable.
	KindNotFound
	// KindUnextractable is a readable document with too little text,
	// usually a scanned or image-only PDF.
	KindUnextractable
	// KindExtraction is a payload that could not be parsed at all.
	KindExtraction
	KindEmbedding
	KindVectorSearch
	KindDatabase
	KindBlobStore
	KindCompletionStream
)

var kindNames = map[Kind]string{
	KindInternal:         "internal",
	KindValidation:       "validation",
	KindNotFound:         "not_found",
	KindUnextractable:    "unextractable_content",
	KindExtraction:       "extraction",
	KindEmbedding:        "embedding_service",
	KindVectorSearch:     "vector_search",
	KindDatabase:         "database",
	KindBlobStore:        "blob_store",
	KindCompletionStream: "completion_stream",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Msg, when set, is safe to show to the
// caller; Err carries the detail that only belongs in logs.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the name of the failing operation.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify wraps err with kind unless something in its chain is already
// classified, in which case err is returned unchanged.
func Classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return E(kind, op, err)
}

// Validation returns a validation failure whose message is shown to users.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NotFound returns the single not-found-or-not-owned outcome.
func NotFound(op string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: "not found"}
}

// Unextractable returns the user-facing outcome for documents without text.
func Unextractable(msg string) error {
	return &Error{Kind: KindUnextractable, Msg: msg}
}

// KindOf reports the kind of the outermost classified error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message attached to err, or fallback when
// err carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}
