package service

// Result carries the outcome of a best-effort step. Steps that fail closed
// return errors directly; steps that may degrade return a Result.
type Result[T any] struct {
	Value T
	Err   error
}

// Try wraps a value/error pair
func Try[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Err: err}
}

// OrDefault returns the value, or fallback after passing the error to onErr
func (r Result[T]) OrDefault(fallback T, onErr func(error)) T {
	if r.Err != nil {
		if onErr != nil {
			onErr(r.Err)
		}
		return fallback
	}
	return r.Value
}
