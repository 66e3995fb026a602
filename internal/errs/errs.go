package errs

import (
	"errors"
	"fmt"
)

var ErrRecordNotFound = errors.New("record not found")

// ErrMutationConflict reports that the target record is already in an
// unexpected state; the caller skips the mutation and keeps the index as-is
var ErrMutationConflict = errors.New("mutation conflict")

var errorInvalidParamFmt = "invalid request params: %s %v"
var errorRecordNotFoundFmt = "%s not found by %s"
var errorMissingParamFmt = "missing required param: %s"

func NewInvalidParamErr(name string, value interface{}) error {
	return fmt.Errorf(errorInvalidParamFmt, name, value)
}

func NewRecordNotFoundErr(name string, value interface{}) error {
	return fmt.Errorf(errorRecordNotFoundFmt, name, value)
}

func NewMissingParamError(name string) error {
	return fmt.Errorf(errorMissingParamFmt, name)
}

// InvalidFilterError carries enough context to fix a broken filter definition
type InvalidFilterError struct {
	Field      string
	Type       string
	Comparison string
	Value      string
	Reason     string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter (field=%s, type=%s, comparison=%s, value=%q): %s",
		e.Field, e.Type, e.Comparison, e.Value, e.Reason)
}

// NewInvalidFilterErr 创建过滤器编译错误
func NewInvalidFilterErr(field, typeTag, comparison, value, reason string) error {
	return &InvalidFilterError{
		Field:      field,
		Type:       typeTag,
		Comparison: comparison,
		Value:      value,
		Reason:     reason,
	}
}

// IsInvalidFilter 判断错误是否为过滤器编译错误
func IsInvalidFilter(err error) bool {
	var ife *InvalidFilterError
	return errors.As(err, &ife)
}
