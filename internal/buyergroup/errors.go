package buyergroup

import (
	"errors"
	"fmt"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
)

// Error is a user-facing pipeline failure carrying a machine-readable code.
type Error struct {
	Code    model.ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) model.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func invalidRequest(msg string) *Error {
	return &Error{Code: model.CodeInvalidRequest, Message: msg}
}

// providerFailure maps a provider error that survived retries to a code.
func providerFailure(msg string, err error) *Error {
	code := model.CodeProviderUnavailable
	if resilience.IsRateLimited(err) {
		code = model.CodeProviderRateLimited
	}
	return &Error{Code: code, Message: msg, Err: err}
}
