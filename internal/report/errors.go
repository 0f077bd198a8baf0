package report

import "errors"

var (
	// ErrReportNotFound means the target id is absent from the expected
	// collection. Callers treat it as a benign race and refresh.
	ErrReportNotFound = errors.New("report not found")

	// ErrStorageUnavailable wraps any failure to read or write the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMalformedRecord marks a stored record that does not parse into a Report.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNotAuthor means a citizen tried to act on a report they did not submit.
	ErrNotAuthor = errors.New("not the report author")

	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
)
