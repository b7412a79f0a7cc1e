package domain

import "time"

// Message is one append-only chat record. Sender is the display identity at
// send time (denormalized, not a foreign key). CreatedAt is assigned by the
// store on insert and is the sole ordering key within a room.
type Message struct {
	ID        string    `db:"id"`
	RoomID    string    `db:"room_id"`
	Sender    string    `db:"sender"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
