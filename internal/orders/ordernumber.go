package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// orderNumberPrefix brands every human-legible order number.
const orderNumberPrefix = "INK"

// NewOrderNumber builds a human-legible, mostly-unique order number:
// INK-<yymmddHHMMSS>-<4 random digits>. Global uniqueness is enforced by the
// database index; callers retry generation on collision.
func NewOrderNumber(now time.Time) string {
	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken;
		// degrade to the sub-second clock instead of panicking.
		return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, now.Format("060102150405"), now.Nanosecond()%10000)
	}
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, now.Format("060102150405"), suffix.Int64())
}
