package order

import (
	"math/rand"
	"time"
)

// NewOrderCode combines the current second with a random suffix in [0, 1000).
// Collisions are still possible; CreateOrReusePending is what keeps codes unique.
func NewOrderCode(now time.Time) int64 {
	return now.Unix()*1000 + rand.Int63n(1000)
}
