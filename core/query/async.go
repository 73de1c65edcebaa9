package query

// Callback receives the outcome of an asynchronous operation. A non-nil
// error means the result must be treated as absent; result and error
// both zero is a valid "nothing found" outcome.
type Callback[T any] func(result T, err error)

// Async runs fn on its own goroutine and funnels the outcome into cb.
// No ordering is guaranteed between independently submitted operations;
// callers that need ordering must serialize themselves.
func Async[T any](fn func() (T, error), cb Callback[T]) {
	go func() {
		result, err := fn()
		if cb != nil {
			cb(result, err)
		}
	}()
}
