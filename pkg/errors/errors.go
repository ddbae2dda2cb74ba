// Package errors provides the error taxonomy shared by every marketlens package.
//
// Errors fall into three families:
//
//   - Data errors (DataError): unreadable or malformed catalog input. Fatal.
//   - Model errors (ModelError, NotFittedError, DimensionError, SchemaError,
//     ValueError): raised by estimators and the demand pipeline. Fatal for the
//     view that triggered them only.
//   - External errors: anything returned by the narrative service. Callers
//     degrade to a placeholder instead of failing.
//
// All types cooperate with the standard errors.Is / errors.As helpers. Stack
// traces are attached through github.com/cockroachdb/errors so that
// fmt.Sprintf("%+v", err) prints where an error was created.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Wrap them with the typed errors below to add context.
var (
	ErrEmptyData         = errors.New("empty data")
	ErrNotFitted         = errors.New("model not fitted")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSchemaMismatch    = errors.New("feature schema mismatch")
	ErrDegenerateTarget  = errors.New("degenerate target")
	ErrSingularMatrix    = errors.New("singular matrix")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotImplemented    = errors.New("not implemented")
)

const prefix = "marketlens"

// ModelError reports a failure inside an estimator or pipeline operation.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError wraps err with the failing operation and a short message.
func NewModelError(op, message string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Message: message, Err: err})
}

// DimensionError reports a shape mismatch. Axis is 0 for rows and 1 for columns.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis == 1 {
		axis = "columns"
	}
	return fmt.Sprintf("%s: %s: dimension mismatch on %s: expected %d, got %d",
		prefix, e.Op, axis, e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// NotFittedError is returned when an estimator is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: this %s instance is not fitted yet, call Fit before %s",
		prefix, e.ModelName, e.ModelName, e.Method)
}

func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ValueError reports an argument with an unacceptable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

func (e *ValueError) Is(target error) bool { return target == ErrInvalidInput }

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// NewValueErrorf creates a ValueError with a formatted message.
func NewValueErrorf(op, format string, args ...interface{}) error {
	return NewValueError(op, fmt.Sprintf(format, args...))
}

// SchemaError reports feature columns that do not match what a model was
// trained on. Columns are never silently reordered.
type SchemaError struct {
	Op       string
	Expected []string
	Got      []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: feature schema mismatch: expected %v, got %v",
		prefix, e.Op, e.Expected, e.Got)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// NewSchemaError creates a SchemaError.
func NewSchemaError(op string, expected, got []string) error {
	return errors.WithStack(&SchemaError{
		Op:       op,
		Expected: append([]string(nil), expected...),
		Got:      append([]string(nil), got...),
	})
}

// DataError reports malformed catalog input. Row and Column are optional;
// Row is 1-based (header excluded) and zero when unknown.
type DataError struct {
	Source  string
	Row     int
	Column  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	loc := e.Source
	if e.Row > 0 {
		loc = fmt.Sprintf("%s row %d", loc, e.Row)
	}
	if e.Column != "" {
		loc = fmt.Sprintf("%s column %q", loc, e.Column)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: data error in %s: %s", prefix, loc, e.Message)
	}
	return fmt.Sprintf("%s: data error in %s: %s: %v", prefix, loc, e.Message, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// NewDataError creates a DataError for a whole source.
func NewDataError(source, message string, err error) error {
	return errors.WithStack(&DataError{Source: source, Message: message, Err: err})
}

// NewDataErrorAt creates a DataError pointing at a specific cell.
func NewDataErrorAt(source string, row int, column, message string, err error) error {
	return errors.WithStack(&DataError{Source: source, Row: row, Column: column, Message: message, Err: err})
}

// IsDataError reports whether err is (or wraps) a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// Recover converts a panic into an error assigned to *err. Use it as
//
//	defer errors.Recover(&err, "Estimator.Fit")
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		*err = errors.WithStack(&ModelError{
			Op:      op,
			Message: fmt.Sprintf("panic recovered: %v", r),
		})
	}
}

// New returns a sentinel error with a stack trace.
func New(msg string) error { return errors.New(msg) }

// Newf is New with formatting.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap annotates err with a message. It returns nil when err is nil.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message. It returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
