package domain

import "time"

// Group is a named space shared by several members. It owns zero or more
// chats; each of those chats still has exactly one owning user.
type Group struct {
	ID        string
	Title     string
	Members   []string
	CreatedAt time.Time
}

func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
