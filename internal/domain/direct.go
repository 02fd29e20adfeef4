package domain

import "time"

// DirectMessage is immutable once created; history is append-only and
// ordered by CreatedAt ascending. The conversation is identified by the
// unordered pair {FromUserID, ToUserID}.
type DirectMessage struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	FromUserID      string    `json:"fromUserId"`
	ToUserID        string    `json:"toUserId"`
	FromDisplayName string    `json:"fromDisplayName"`
	CreatedAt       time.Time `json:"createdAt"`
}
