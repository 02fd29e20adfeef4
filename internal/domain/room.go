package domain

import "time"

type Room struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}
