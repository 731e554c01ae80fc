package engine

import (
	"math/rand"
	"time"
)

// DelayFunc produces one randomized duration within [min, max]. The engine
// takes it as an injectable dependency so tests can pin it to zero and assert
// on pure event ordering.
type DelayFunc func(min, max time.Duration) time.Duration

// RandomDelay draws uniformly from [min, max] using the given source.
func RandomDelay(rng *rand.Rand) DelayFunc {
	return func(min, max time.Duration) time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rng.Int63n(int64(max-min+1)))
	}
}

// ZeroDelay always returns zero. Test use only.
func ZeroDelay(_, _ time.Duration) time.Duration { return 0 }
