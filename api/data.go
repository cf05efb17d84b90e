package main

import "time"

type todo struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type eventKind string

const (
	eventCreated eventKind = "created"
	eventUpdated eventKind = "updated"
	eventDeleted eventKind = "deleted"
)

// event is the payload published to the broker topic after each mutation.
// It is transient: constructed, handed to the publisher and never retained.
type event struct {
	ID        string    `json:"event_id"`
	Kind      eventKind `json:"event_kind"`
	Todo      todo      `json:"todo"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}
