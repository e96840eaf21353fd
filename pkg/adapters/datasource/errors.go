package datasource

// QueryError is a statement the database engine rejected. Message is the
// engine's own text, which may span several lines (detail, hint, position).
type QueryError struct {
	Op      string // "validate" or "execute"
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError wraps a driver error.
func NewQueryError(op string, err error) *QueryError {
	return &QueryError{Op: op, Message: err.Error(), Err: err}
}
