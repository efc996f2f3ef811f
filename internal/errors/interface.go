package errors

// ErrorCode identifies a failure independently of its message, so logs and
// callers can match on it.
type ErrorCode string

// Error is a coded failure, optionally carrying a wrapped cause or a data
// payload such as per-method failure lists.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors; every package gets one from New.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}

// AsCoded returns the outermost coded error in err's chain.
func AsCoded(err error) (Error, bool) {
	var coded Error
	if !As(err, &coded) {
		return nil, false
	}

	return coded, true
}
