package frequency

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	ErrActuationUnavailable = errors.ErrorCode("frequency_actuation_unavailable")
	ErrManualRequired       = errors.ErrorCode("frequency_manual_required")
)

// Reason classifies why one actuation method failed.
type Reason int

const (
	ReasonWriteFailed Reason = iota
	ReasonPermissionDenied
	ReasonUnsupported
	ReasonToolMissing
	ReasonTimeout
	ReasonOutOfTolerance
	ReasonNoRegisterTable
	ReasonRequiresReboot
)

func (r Reason) String() string {
	switch r {
	case ReasonWriteFailed:
		return "write failed"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonToolMissing:
		return "tool missing"
	case ReasonTimeout:
		return "timeout"
	case ReasonOutOfTolerance:
		return "out of tolerance"
	case ReasonNoRegisterTable:
		return "no register table"
	case ReasonRequiresReboot:
		return "requires reboot"
	}

	return "unknown"
}

// MethodFailure records one failed attempt.
type MethodFailure struct {
	Method Method
	Reason Reason
	Err    error
}

func (f MethodFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Method, f.Reason)
	}

	return fmt.Sprintf("%s: %s: %v", f.Method, f.Reason, f.Err)
}

func (f MethodFailure) Unwrap() error {
	return f.Err
}

// Failures lists every attempt carried by an ErrActuationUnavailable error.
type Failures []MethodFailure

func (fs Failures) String() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, f.Error())
	}

	return strings.Join(parts, "; ")
}

// FailuresOf extracts the per-method failures from err, if any.
func FailuresOf(err error) Failures {
	appErr, ok := errors.AsCoded(err)
	if !ok {
		return nil
	}
	fs, _ := appErr.GetData().(Failures)

	return fs
}
