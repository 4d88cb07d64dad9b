package trigger

// Overlay is the open/closed suggestion list shown while a token is active.
// It is not safe for concurrent use; the composer owning it serializes access.
type Overlay[T any] struct {
	open     bool
	token    Token
	results  []T
	selected int
}

// Activate opens the overlay for tok with results. The selection resets to 0
// whenever the token or its query changes; refreshing the results of the same
// token only clamps it.
func (o *Overlay[T]) Activate(tok Token, results []T) {
	if !o.open || o.token != tok {
		o.selected = 0
	}
	o.open = true
	o.token = tok
	o.results = results
	o.clamp()
}

// Close hides the overlay and drops its results.
func (o *Overlay[T]) Close() {
	o.open = false
	o.token = Token{}
	o.results = nil
	o.selected = 0
}

// Open reports whether the overlay is visible.
func (o *Overlay[T]) Open() bool { return o.open }

// Token returns the token the overlay is showing results for.
func (o *Overlay[T]) Token() Token { return o.token }

// Results returns the current result list.
func (o *Overlay[T]) Results() []T { return o.results }

// Index returns the selection index, clamped to [0, len(results)-1].
func (o *Overlay[T]) Index() int { return o.selected }

// Move shifts the selection by delta, wrapping around the result list.
func (o *Overlay[T]) Move(delta int) {
	n := len(o.results)
	if !o.open || n == 0 {
		return
	}
	o.selected = ((o.selected+delta)%n + n) % n
}

// Selected returns the highlighted result.
func (o *Overlay[T]) Selected() (T, bool) {
	var zero T
	if !o.open || len(o.results) == 0 {
		return zero, false
	}
	return o.results[o.selected], true
}

func (o *Overlay[T]) clamp() {
	switch {
	case len(o.results) == 0:
		o.selected = 0
	case o.selected >= len(o.results):
		o.selected = len(o.results) - 1
	case o.selected < 0:
		o.selected = 0
	}
}
