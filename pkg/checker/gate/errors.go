package gate

import (
	"errors"
	"strings"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
)

// ErrAlreadyFinalized is returned when finalize runs a second time on the same plugin.
var ErrAlreadyFinalized = errors.New("code checker already finalized")

// ComplianceError fails the build. Its message lists every violation message,
// one per line, in the order they were collected.
type ComplianceError struct {
	Violations []types.Violation
}

func (e *ComplianceError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		messages = append(messages, v.Message)
	}
	return strings.Join(messages, "\n")
}

// InternalError means the checker could not do its job. It is never a compliance result.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "code checker internal error: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
