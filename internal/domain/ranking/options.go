package ranking

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMinEvents sets how many counted events a player needs to be ranked.
func WithMinEvents(n int) Option {
	return func(a *Aggregator) {
		a.minEvents = n
	}
}

// WithWindow sets the rolling window and how many of the best results in it
// count towards a player's points.
func WithWindow(days, counted int) Option {
	return func(a *Aggregator) {
		a.windowDays = days
		a.countedResults = counted
	}
}
