// Package revocation remembers invalidated proof tokens until they would have
// expired anyway, so verification can reject them without a database read.
package revocation

import (
	"fmt"
	"time"

	"geoprivacy/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
