package domain

// RoomMessage is one entry of a room's chat history. The id is the identity
// key: a second event with the same id replaces content and role in place,
// it never creates a duplicate entry. Display order is insertion order.
type RoomMessage struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AuthorLabel string `json:"authorLabel"`
	Role        string `json:"role"`
}
