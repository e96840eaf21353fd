package apperrors

import "errors"

// Failure classes of the question-answering pipeline. Extraction, unsafe-query
// and validation failures are recovered by the generation loop; the rest are
// surfaced to the caller.
var (
	ErrSchemaUnavailable     = errors.New("schema unavailable")
	ErrGenerationUnreachable = errors.New("language model unreachable")
	ErrExtractionFailed      = errors.New("no SQL found in model output")
	ErrUnsafeQuery           = errors.New("unsafe query")
	ErrValidationFailed      = errors.New("query validation failed")
	ErrAttemptsExhausted     = errors.New("generation attempts exhausted")
	ErrExecutionFailed       = errors.New("query execution failed")
	ErrFormattingFailed      = errors.New("unexpected result format")
	ErrMissingQuestion       = errors.New("missing question")
)
