package xerrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// TargetFailure is the reason one target of a batch was rejected.
type TargetFailure struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BulkError rejects a whole batch, it lists every failing target.
type BulkError struct {
	Operation string
	Failures  []TargetFailure
}

func (e *BulkError) Error() string {
	var merr *multierror.Error
	for _, f := range e.Failures {
		merr = multierror.Append(merr, fmt.Errorf("%s: %s", f.ID, f.Reason))
	}

	if merr == nil {
		return e.Operation + " rejected"
	}

	merr.ErrorFormat = func(errs []error) string {
		parts := make([]string, 0, len(errs))
		for _, err := range errs {
			parts = append(parts, err.Error())
		}

		return strings.Join(parts, "; ")
	}

	return fmt.Sprintf("%s rejected for %d target(s): %s", e.Operation, len(e.Failures), merr.Error())
}

// Add records a failure for id, the code is taken from err.
func (e *BulkError) Add(id string, err error) {
	failure := TargetFailure{ID: id, Code: CodeOf(err)}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		failure.Reason = domainErr.Message
	} else {
		failure.Reason = err.Error()
	}

	e.Failures = append(e.Failures, failure)
}

// ErrorOrNil returns nil when no failure was recorded.
func (e *BulkError) ErrorOrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}

	return e
}

func (e *BulkError) HTTPStatus() int {
	return httpStatusMap[CodeValidation]
}

// AsBulk extracts a BulkError from err.
func AsBulk(err error) (*BulkError, bool) {
	var bulkErr *BulkError
	if errors.As(err, &bulkErr) {
		return bulkErr, true
	}

	return nil, false
}
