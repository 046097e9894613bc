package models

import (
	"fmt"
	"time"
)

// Activity types recorded for typed task events.
const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	// TypeGeneric is used for untyped events without an @type field.
	TypeGeneric = "event"
)

// Activity is one entry of a project's audit trail, derived from a task event.
type Activity struct {
	ID string `json:"id"`
	// EventID identifies the source record; the store keeps one activity per EventID.
	EventID   string    `json:"eventId"`
	TaskID    string    `json:"taskId"`
	ProjectID string    `json:"projectId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// EventID formats the bus coordinates of a record as a stable idempotency key.
func EventID(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s/%d/%d", topic, partition, offset)
}
