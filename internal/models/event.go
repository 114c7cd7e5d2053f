package models

// AuraEvent is one immutable record of a user awarding points to another
// user within a group. Events are append-only; they are never edited or
// deleted.
type AuraEvent struct {
	ID         string `json:"id"`
	GroupID    string `json:"groupId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	// Points is a signed delta applied to the recipient's total. Zero and
	// negative values are valid.
	Points      int    `json:"points"`
	Description string `json:"description"`
	// Timestamp is the creation time in unix milliseconds. The event log
	// is ordered by it, newest first.
	Timestamp int64 `json:"timestamp"`
}
