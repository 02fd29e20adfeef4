package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type RegisterRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName *string `json:"displayName,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  UserItem `json:"user"`
}

type UserItem struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName,omitempty"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

type AddContactRequest struct {
	Email string `json:"email"`
}

type ContactItem struct {
	UserID      string  `json:"userId"`
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

type ContactsResponse struct {
	Items []ContactItem `json:"items"`
}

type SendDirectRequest struct {
	Content string `json:"content"`
	RoomID  string `json:"roomId"`
}

type DirectItem struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	FromUserID      string    `json:"fromUserId"`
	ToUserID        string    `json:"toUserId"`
	FromDisplayName string    `json:"fromDisplayName"`
	CreatedAt       time.Time `json:"createdAt"`
}

type DirectsResponse struct {
	Items      []DirectItem `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type RoomItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
