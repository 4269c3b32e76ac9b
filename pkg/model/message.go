package model

import "time"

type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleAEI  MessageRole = "aei"
)

// Message is one conversation turn. Windows of messages are the extraction unit.
type Message struct {
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// Session is one conversation between an AEI and its user
type Session struct {
	ID           SessionID
	AEIID        AEIID
	UserID       UserID
	StartedAt    time.Time
	MessageCount int
}

// AEIStats summarizes the chat history volume of one AEI, used to order
// migration work
type AEIStats struct {
	AEIID        AEIID
	UserID       UserID
	MessageCount int
}

// QAPair is a record in the legacy question/answer memory store. Migration
// reads it for audit purposes only and never mutates it.
type QAPair struct {
	Question  string
	Answer    string
	AEIID     AEIID
	UserID    UserID
	CreatedAt time.Time
}
