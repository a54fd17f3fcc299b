package patch

import (
	"errors"
	"fmt"

	"github.com/giantswarm/kopkit/pkg/kinds"
)

// ErrFormat is matched by errors.Is for every FormatError.
var ErrFormat = errors.New("patch format error")

// FormatError reports a value whose shape does not fit the merge strategy
// the schema declares for it.
type FormatError struct {
	Kind       string
	APIVersion string
	Path       string
	// TokenType is the JSON type of the applied value, or "absent".
	TokenType string
	Strategy  kinds.MergeStrategy
	Reason    string
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s.%s %s type %s is incorrect for %s", e.Kind, e.APIVersion, e.Path, e.TokenType, e.Strategy)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrFormat) true.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IsFormatError reports whether err is or wraps a FormatError.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}
