package models

// Group represents a group of users who award each other aura.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Code is the public 6-character join token (uppercase letters and digits).
	Code string `json:"code"`
	// Members holds user IDs in join order. Append-only, no duplicates.
	Members []string `json:"members"`
	// Events holds event IDs in creation order, a denormalized index into
	// the global event log filtered by this group.
	Events []string `json:"events"`
}

// HasMember reports whether the given user ID is in the member list.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}
