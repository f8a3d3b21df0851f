package anthology

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrontMatter = errors.New("malformed front matter")
	ErrMalformedManifest    = errors.New("malformed manifest")
	ErrUnreadableSource     = errors.New("unreadable source")
)

// ParseError is a parse-time failure of a single input file. It aborts
// processing of that file only.
type ParseError struct {
	Path string
	Line int // 0 when the failure has no line
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind names the failure class as it appears in reports.
func (e *ParseError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrMalformedFrontMatter):
		return "MalformedFrontMatter"
	case errors.Is(e.Err, ErrMalformedManifest):
		return "MalformedManifest"
	case errors.Is(e.Err, ErrUnreadableSource):
		return "UnreadableSource"
	}
	return "ParseError"
}
