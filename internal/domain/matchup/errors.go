package matchup

import "errors"

var (
	ErrExtractionFailed = errors.New("no parseable JSON found in model output")
	ErrSchemaInvalid    = errors.New("extracted object does not match the matchups schema")
	ErrNonNumericScore  = errors.New("score cannot be coerced to a number")
)

// RawTextError attaches the untouched model response to a pipeline
// failure so callers can surface it for diagnostics.
type RawTextError struct {
	Err error
	Raw string
}

func (e *RawTextError) Error() string { return e.Err.Error() }

func (e *RawTextError) Unwrap() error { return e.Err }

// WithRawText wraps err with the raw model text. A nil err stays nil.
func WithRawText(err error, raw string) error {
	if err == nil {
		return nil
	}
	return &RawTextError{Err: err, Raw: raw}
}

// RawText walks the error chain and returns the attached model text, if
// any.
func RawText(err error) (string, bool) {
	var rte *RawTextError
	if errors.As(err, &rte) {
		return rte.Raw, true
	}
	return "", false
}
