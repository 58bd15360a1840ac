package reactive

import "log/slog"

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithDefaultEquals sets the store-level default equality function used
// by cells that do not override it. Defaults to DefaultEquals.
func WithDefaultEquals(eq func(a, b any) bool) StoreOption {
	return func(s *Store) {
		if eq != nil {
			s.defaultEquals = eq
		}
	}
}

// WithLogger sets the store's logger. Defaults to slog.Default with a
// "component" attribute.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches engine metrics to the store. The same Metrics
// value may be shared by several stores.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithDebug enables debug logging of batch and propagation activity.
func WithDebug() StoreOption {
	return func(s *Store) {
		s.debug = true
	}
}

// cellConfig collects per-cell settings.
type cellConfig struct {
	name   string
	equals func(a, b any) bool
}

// CellOption configures a cell at creation time.
type CellOption func(*cellConfig)

// WithName registers the cell under a name, making it reachable via
// Store.Lookup and addressable from expression cells. Names are unique
// per store.
func WithName(name string) CellOption {
	return func(c *cellConfig) {
		c.name = name
	}
}

// WithEquals overrides the store's default equality for this cell. The
// equality decides whether a write or recomputation changed the value;
// equal values do not advance the version and do not notify.
func WithEquals(eq func(a, b any) bool) CellOption {
	return func(c *cellConfig) {
		c.equals = eq
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// SubscribeEquals sets the equality used to suppress notifications when
// the observed value is structurally unchanged. Defaults to the
// observed cell's equality.
func SubscribeEquals(eq func(a, b any) bool) SubscribeOption {
	return func(sub *Subscription) {
		if eq != nil {
			sub.equals = eq
		}
	}
}
