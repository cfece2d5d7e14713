package video

// Wrapper transforms a pipeline handle.  It returns either its input
// unchanged or a new handle that owns the input.
type Wrapper[T any] func(T) T

// Chain applies wrappers left to right, feeding each the result of the
// previous one, and returns the final handle.  Every wrapper is always
// invoked, even when an earlier one already replaced the handle.
func Chain[T any](in T, wrappers ...Wrapper[T]) T {
	out := in
	for _, w := range wrappers {
		out = w(out)
	}
	return out
}
