package oracle

// Result is a typed success-or-failure outcome of an oracle call.
type Result[T any] struct {
	Value T
	Err   error
}

// Succeed wraps a successful value.
func Succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a failure. A nil err is recorded as an unknown failure.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errUnknown
	}
	return Result[T]{Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Reason returns the failure text, or "" on success.
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Unwrap returns the value and error as a conventional pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}
