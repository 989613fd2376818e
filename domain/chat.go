package domain

import "time"

// Chat is one ordered conversation thread between a user and the assistant.
// GroupID is set at creation for chats living inside a group space and never
// changes afterwards. Title stays nil until the title pipeline wins the
// conditional write, and is immutable from then on.
type Chat struct {
	ID        string
	OwnerID   string
	GroupID   *string
	Title     *string
	CreatedAt time.Time
}

// CanonicalPath is the only address the engine keys on. Group/chat pair
// addresses are aliases resolved at the boundary.
func (c Chat) CanonicalPath() string {
	return "/chat/" + c.ID
}
