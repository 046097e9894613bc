// Package events defines the task domain events carried on the task.events
// topic and the decode step shared by every consumer of that topic.
//
// Created and updated events share one JSON shape; the kind travels in the
// record header "event-type". Producers built on Spring set "__TypeId__"
// instead, which is accepted as well.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

const (
	// HeaderType carries the event kind on every published record.
	HeaderType = "event-type"
	// HeaderSpringType is the class-name header written by Spring Kafka producers.
	HeaderSpringType = "__TypeId__"

	KindTaskCreated = "task.created"
	KindTaskUpdated = "task.updated"
	// KindGeneric is used for untyped payloads that do not name their own type.
	KindGeneric = "task.event"

	// GenericTypeField is the discriminator read from untyped payloads.
	GenericTypeField = "@type"
)

// ErrUnroutable marks a payload with no resolvable project id.
var ErrUnroutable = errors.New("event has no project id")

// Task is the body of TaskCreated and TaskUpdated.
type Task struct {
	TaskID     string    `json:"taskId"`
	ProjectID  string    `json:"projectId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
	Labels     []string  `json:"labels,omitempty"`
}

// TaskCreated is emitted once per new task.
type TaskCreated Task

// TaskUpdated is emitted on every task modification.
type TaskUpdated Task

// Event is the result of decoding one bus record.
type Event struct {
	Kind      string
	ProjectID string
	// TaskID is empty for generic payloads that do not carry one.
	TaskID string
	// Task is set for the typed variants only.
	Task *Task
	// Raw is the original payload, passed through untouched.
	Raw json.RawMessage
}

// Typed reports whether the event decoded as TaskCreated or TaskUpdated.
func (e Event) Typed() bool { return e.Task != nil }

// Decode classifies a record in fixed priority order: a header-typed task
// event, then a generic JSON object exposing projectId, else ErrUnroutable.
func Decode(headers map[string]string, value []byte) (Event, error) {
	raw := bytes.TrimSpace(value)
	if kind := KindFromHeaders(headers); kind != "" {
		if ev, ok := decodeTyped(kind, raw); ok {
			return ev, nil
		}
	}
	return decodeGeneric(raw)
}

// KindFromHeaders returns task.created or task.updated when the headers name one, else "".
func KindFromHeaders(headers map[string]string) string {
	switch strings.TrimSpace(headers[HeaderType]) {
	case KindTaskCreated:
		return KindTaskCreated
	case KindTaskUpdated:
		return KindTaskUpdated
	}
	spring := strings.TrimSpace(headers[HeaderSpringType])
	switch {
	case strings.HasSuffix(spring, "TaskCreated"):
		return KindTaskCreated
	case strings.HasSuffix(spring, "TaskUpdated"):
		return KindTaskUpdated
	}
	return ""
}

func decodeTyped(kind string, raw []byte) (Event, bool) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Event{}, false
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return Event{}, false
	}
	return Event{
		Kind:      kind,
		ProjectID: t.ProjectID,
		TaskID:    t.TaskID,
		Task:      &t,
		Raw:       json.RawMessage(raw),
	}, true
}

func decodeGeneric(raw []byte) (Event, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil || m == nil {
		return Event{}, ErrUnroutable
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Event{}, ErrUnroutable
	}
	projectID := scalarString(m["projectId"])
	if strings.TrimSpace(projectID) == "" {
		return Event{}, ErrUnroutable
	}
	kind, _ := m[GenericTypeField].(string)
	if strings.TrimSpace(kind) == "" {
		kind = KindGeneric
	}
	taskID := scalarString(m["taskId"])
	return Event{
		Kind:      kind,
		ProjectID: projectID,
		TaskID:    taskID,
		Raw:       json.RawMessage(raw),
	}, nil
}

// scalarString renders string and numeric identifiers; anything else is "".
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

// Envelope is what websocket clients receive for every relayed event.
type Envelope struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// MarshalEnvelope wraps the original payload without re-encoding it.
func MarshalEnvelope(ev Event) ([]byte, error) {
	return json.Marshal(Envelope{Type: ev.Kind, Event: ev.Raw})
}
