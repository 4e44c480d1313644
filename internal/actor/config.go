package actor

import "time"

// Config bundles the actor's tunables. Defaults below are the
// "production" values from spec.md §4.1/§5; test callers override them to
// the spec's "test" column for fast, deterministic suites.
type Config struct {
	Tenant      string
	Namespace   string
	TopicPrefix string

	// SnapshotInterval is N: the number of folded SYNC messages that
	// triggers a fresh snapshot write.
	SnapshotInterval int

	// ReplayReadTimeout bounds each individual replay read.
	ReplayReadTimeout time.Duration
	// ReplayMaxConsecutiveTimeouts is K: consecutive per-read timeouts
	// that end the replay window early.
	ReplayMaxConsecutiveTimeouts int
	// ReplayWallClockCap bounds the whole replay window regardless of the
	// per-read timeout.
	ReplayWallClockCap time.Duration

	// CreationRetryMax bounds LOADING_SNAPSHOT->OPENING_BROKER and
	// OPENING_BROKER->REPLAYING retries.
	CreationRetryMax     int
	CreationRetryBackoff time.Duration
}

// DefaultConfig returns spec.md's production values.
func DefaultConfig() Config {
	return Config{
		Tenant:                       "docrelay",
		Namespace:                    "default",
		TopicPrefix:                  "",
		SnapshotInterval:             30,
		ReplayReadTimeout:            2 * time.Second,
		ReplayMaxConsecutiveTimeouts: 3,
		ReplayWallClockCap:           15 * time.Second,
		CreationRetryMax:             3,
		CreationRetryBackoff:         1 * time.Second,
	}
}

// TestConfig returns spec.md's test-column values for fast suites.
func TestConfig() Config {
	c := DefaultConfig()
	c.ReplayReadTimeout = 500 * time.Millisecond
	c.ReplayMaxConsecutiveTimeouts = 1
	c.ReplayWallClockCap = 3 * time.Second
	c.CreationRetryBackoff = 10 * time.Millisecond
	return c
}
