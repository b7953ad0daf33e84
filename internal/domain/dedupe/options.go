package dedupe

// Option configures the in-memory ledger.
type Option func(*ledger)

// WithMaxSize bounds the number of remembered keys. Once full, the oldest
// key is forgotten first. A size of zero or less keeps every key.
func WithMaxSize(maxSize int) Option {
	return func(d *ledger) {
		d.maxSize = maxSize
	}
}
