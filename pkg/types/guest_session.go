package types

import "time"

// GuestSession lets an express-checkout guest claim an account after the
// purchase completes.
type GuestSession struct {
	Token           string    `json:"token"`
	Expiry          time.Time `json:"expiry"`
	CanClaimAccount bool      `json:"can_claim_account"`
}
