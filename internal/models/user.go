// Package models contains data structures for the application's domain models.
package models

// User represents a registered Aura Battle user.
//
// TotalAura is denormalized: it always equals the sum of Points over all
// events where the user is the recipient. The store layer keeps it in sync
// when awards are recorded; it is never re-derived on read.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	TotalAura      int    `json:"totalAura"`
}
