package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is the umbrella for client-input errors.
	ErrValidation           = errors.New("validation failed")
	ErrMissingFile          = errors.New("missing file")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidSchema        = errors.New("invalid schema")
	ErrInvalidRow           = errors.New("invalid row")
	ErrEmptyUpload          = errors.New("no data found")
	ErrDuplicate            = errors.New("duplicate records")
	ErrNotFound             = errors.New("not found")
	ErrAlreadySaved         = errors.New("upload already saved")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("missing user identity")
	ErrTooLarge             = errors.New("file too large")
	ErrProvider             = errors.New("enrichment provider error")
)

// MediaTypeError reports an upload whose MIME type is not accepted.
type MediaTypeError struct {
	Accepted []string
	Actual   string
}

func (e *MediaTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q (accepted: %s)", e.Actual, strings.Join(e.Accepted, ", "))
}

func (e *MediaTypeError) Is(target error) bool {
	return target == ErrUnsupportedMediaType || target == ErrValidation
}

// SchemaError reports a header row that does not match the expected columns.
type SchemaError struct {
	Expected []string
	Actual   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid header: expected [%s], got [%s]", strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema || target == ErrValidation
}

// RowError reports the first invalid data row. Row is 1-based over data rows.
type RowError struct {
	Row    int
	Field  string
	Value  string
	Values []string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q", e.Row, e.Field, e.Value)
}

func (e *RowError) Is(target error) bool {
	return target == ErrInvalidRow || target == ErrValidation
}

// EmptyUploadError reports a file with a valid header and no data rows.
type EmptyUploadError struct{}

func (e *EmptyUploadError) Error() string { return ErrEmptyUpload.Error() }

func (e *EmptyUploadError) Is(target error) bool {
	return target == ErrEmptyUpload || target == ErrInvalidRow || target == ErrValidation
}

// DuplicateError lists rows that collide with persons already stored for the owner.
type DuplicateError struct {
	Duplicates []DuplicateKey
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%d duplicate record(s) already exist", len(e.Duplicates))
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate || target == ErrValidation
}

// MissingFileError reports a request without an attached file.
type MissingFileError struct{}

func (e *MissingFileError) Error() string { return "no file attached" }

func (e *MissingFileError) Is(target error) bool {
	return target == ErrMissingFile || target == ErrValidation
}

// TooLargeError reports an upload over the configured size limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %d byte limit", e.Limit)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadySavedError reports a save attempted on a committed upload.
type AlreadySavedError struct {
	UploadID int64
}

func (e *AlreadySavedError) Error() string {
	return fmt.Sprintf("upload %d is already saved", e.UploadID)
}

func (e *AlreadySavedError) Is(target error) bool {
	return target == ErrAlreadySaved
}

// ForbiddenError reports an upload or company owned by another business.
type ForbiddenError struct {
	UserID    int64
	UploadID  int64
	CompanyID int64
}

func (e *ForbiddenError) Error() string {
	switch {
	case e.UploadID != 0:
		return fmt.Sprintf("user %d may not access upload %d", e.UserID, e.UploadID)
	case e.CompanyID != 0:
		return fmt.Sprintf("user %d may not access company %d", e.UserID, e.CompanyID)
	}
	return fmt.Sprintf("user %d has no company access", e.UserID)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// ProviderError wraps a failed enrichment provider call.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("enrichment provider: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("enrichment provider returned status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("enrichment provider returned status %d", e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}
