package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the analytics core so the
// presentation layer can tell "insufficient selection" apart from
// "data unavailable" and "computation failed".
type ErrorKind int

const (
	// KindConfiguration covers invalid user settings or selections.
	KindConfiguration ErrorKind = iota + 1
	// KindData covers missing, empty or corrupt price history.
	KindData
	// KindNumerical covers estimator instability and solver failures.
	KindNumerical
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindData:
		return "data"
	case KindNumerical:
		return "numerical"
	default:
		return "unknown"
	}
}

// Causes shared across packages. Match them with errors.Is.
var (
	ErrTooFewAssets           = errors.New("at least 2 assets are required")
	ErrDuplicateAsset         = errors.New("duplicate asset")
	ErrInvalidDelta           = errors.New("shrinkage delta must be within [0, 1]")
	ErrInvalidDateRange       = errors.New("start date must be before end date")
	ErrInvalidSetting         = errors.New("invalid setting")
	ErrMissingAsset           = errors.New("missing price history for asset")
	ErrEmptySeries            = errors.New("empty price series")
	ErrSourceUnavailable      = errors.New("price source unavailable")
	ErrCorruptPrice           = errors.New("corrupt price entry")
	ErrUnorderedTimestamps    = errors.New("timestamps are not strictly increasing")
	ErrInsufficientData       = errors.New("insufficient observations")
	ErrDimensionMismatch      = errors.New("dimension mismatch")
	ErrNotPSD                 = errors.New("covariance matrix is not positive semi-definite")
	ErrNotConverged           = errors.New("solver did not converge")
	ErrNoPositiveExcessReturn = errors.New("no asset has a positive excess return over the risk-free rate")
	ErrZeroVariance           = errors.New("zero-variance asset")
	ErrNonFinite              = errors.New("non-finite value")
)

// Error is the error type returned by the analytics core.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "covariance.Estimate"
	Message string
	Err     error // underlying cause, usually one of the Err* sentinels
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s error: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(op string, cause error, format string, args ...interface{}) *Error {
	return newError(KindConfiguration, op, cause, format, args...)
}

// DataError builds a KindData error.
func DataError(op string, cause error, format string, args ...interface{}) *Error {
	return newError(KindData, op, cause, format, args...)
}

// NumericalError builds a KindNumerical error.
func NumericalError(op string, cause error, format string, args ...interface{}) *Error {
	return newError(KindNumerical, op, cause, format, args...)
}

func newError(kind ErrorKind, op string, cause error, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsData reports whether err is a data error.
func IsData(err error) bool { return KindOf(err) == KindData }

// IsNumerical reports whether err is a numerical error.
func IsNumerical(err error) bool { return KindOf(err) == KindNumerical }
