package circulation

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeDuplicateRequest  Code = "DUPLICATE_REQUEST"
	CodeRequestNotFound   Code = "REQUEST_NOT_FOUND"
	CodeCopyNotFound      Code = "COPY_NOT_FOUND"
	CodeCopyUnavailable   Code = "COPY_UNAVAILABLE"
	CodeIssueNotFound     Code = "ISSUE_NOT_FOUND"
	CodeAlreadyReturned   Code = "ALREADY_RETURNED"
	CodeBookNotFound      Code = "BOOK_NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInternal          Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
	Err     error // INTERNAL のときの原因
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrInternal(err error) *APIError {
	return &APIError{Code: CodeInternal, Message: "internal error", Err: err}
}
func errDuplicateRequest() *APIError {
	return &APIError{Code: CodeDuplicateRequest, Message: "pending request already exists for this book"}
}
func errRequestNotFound() *APIError {
	return &APIError{Code: CodeRequestNotFound, Message: "request not found"}
}
func errCopyNotFound() *APIError {
	return &APIError{Code: CodeCopyNotFound, Message: "book copy not found"}
}
func errCopyUnavailable(s CopyStatus) *APIError {
	return &APIError{Code: CodeCopyUnavailable, Message: fmt.Sprintf("book copy is not available (status=%s)", s)}
}
func errIssueNotFound() *APIError {
	return &APIError{Code: CodeIssueNotFound, Message: "issue not found"}
}
func errAlreadyReturned() *APIError {
	return &APIError{Code: CodeAlreadyReturned, Message: "book already returned"}
}
func errBookNotFound() *APIError { return &APIError{Code: CodeBookNotFound, Message: "book not found"} }
func errInvalidTransition(from, to CopyStatus) *APIError {
	return &APIError{Code: CodeInvalidTransition, Message: fmt.Sprintf("copy status cannot change from %s to %s", from, to)}
}

// CodeOf は err の Code を返す。APIError でなければ INTERNAL
func CodeOf(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRequestNotFound, CodeCopyNotFound, CodeIssueNotFound, CodeBookNotFound:
		return http.StatusNotFound
	case CodeDuplicateRequest, CodeCopyUnavailable, CodeAlreadyReturned, CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
