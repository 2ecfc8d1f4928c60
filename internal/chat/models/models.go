package models

import (
	"strings"
	"time"
)

// User is owned by the identity platform and read-only here.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Conversation pairs exactly two users. New rows are stored with
// ParticipantA < ParticipantB so the unique index covers the unordered pair.
type Conversation struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ParticipantA string    `gorm:"column:participant_a;size:64;not null;uniqueIndex:idx_conversation_pair,priority:1" bson:"participant_a" json:"participant_a"`
	ParticipantB string    `gorm:"column:participant_b;size:64;not null;uniqueIndex:idx_conversation_pair,priority:2;index" bson:"participant_b" json:"participant_b"`
	CreatedAt    time.Time `gorm:"column:created_at" bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two members.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// Peer returns the other participant, or "" if userID is not a member.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// CanonicalPair orders two user ids so that (a, b) and (b, a) map to the same key.
func CanonicalPair(u, v string) (string, string) {
	if v < u {
		return v, u
	}
	return u, v
}

// Message is immutable once stored. ID is assigned by the store and
// increases with insertion order; it breaks ties between equal CreatedAt values.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" bson:"seq" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;index:idx_messages_conversation_created,priority:1" bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `gorm:"column:sender_id;size:64;not null;index" bson:"sender_id" json:"sender_id"`
	Body           string    `gorm:"column:body;type:text;not null" bson:"body" json:"message"`
	CreatedAt      time.Time `gorm:"column:created_at;index:idx_messages_conversation_created,priority:2" bson:"created_at" json:"created_at"`
}

// History is the result of fetching a conversation with a peer.
type History struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []*Message    `json:"messages"`
}

// DisplayNameFromMetadata picks the platform's name or full_name field and
// falls back to the local part of the email.
func DisplayNameFromMetadata(metadata map[string]interface{}, email string) string {
	for _, key := range []string{"name", "full_name"} {
		if v, ok := metadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
