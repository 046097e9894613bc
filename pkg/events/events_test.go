package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createdPayload = `{"taskId":"t1","projectId":"p1","title":"Write docs","status":"TODO","occurredAt":"2025-01-02T03:04:05Z","labels":["docs"]}`

func TestDecodeTypedByHeader(t *testing.T) {
	ev, err := Decode(map[string]string{HeaderType: KindTaskCreated}, []byte(createdPayload))
	require.NoError(t, err)

	assert.Equal(t, KindTaskCreated, ev.Kind)
	assert.Equal(t, "p1", ev.ProjectID)
	assert.Equal(t, "t1", ev.TaskID)
	require.True(t, ev.Typed())
	assert.Equal(t, "Write docs", ev.Task.Title)
	assert.JSONEq(t, createdPayload, string(ev.Raw))
}

func TestDecodeTypedBySpringHeader(t *testing.T) {
	headers := map[string]string{HeaderSpringType: "com.example.events.TaskUpdated"}
	ev, err := Decode(headers, []byte(createdPayload))
	require.NoError(t, err)
	assert.Equal(t, KindTaskUpdated, ev.Kind)
}

func TestDecodeGenericFallback(t *testing.T) {
	t.Run("type discriminator", func(t *testing.T) {
		ev, err := Decode(nil, []byte(`{"@type":"task.archived","projectId":"p9"}`))
		require.NoError(t, err)
		assert.Equal(t, "task.archived", ev.Kind)
		assert.Equal(t, "p9", ev.ProjectID)
		assert.False(t, ev.Typed())
	})

	t.Run("default kind", func(t *testing.T) {
		ev, err := Decode(nil, []byte(`{"projectId":"p9","note":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, KindGeneric, ev.Kind)
	})

	t.Run("numeric identifiers", func(t *testing.T) {
		ev, err := Decode(nil, []byte(`{"@type":"task.moved","projectId":42,"taskId":7}`))
		require.NoError(t, err)
		assert.Equal(t, "task.moved", ev.Kind)
		assert.Equal(t, "42", ev.ProjectID)
		assert.Equal(t, "7", ev.TaskID)
	})

	t.Run("typed header with numeric project falls through to generic", func(t *testing.T) {
		ev, err := Decode(map[string]string{HeaderType: KindTaskCreated}, []byte(`{"taskId":"t1","projectId":42}`))
		require.NoError(t, err)
		assert.Equal(t, KindGeneric, ev.Kind)
		assert.Equal(t, "42", ev.ProjectID)
	})

	t.Run("typed header without project falls through", func(t *testing.T) {
		_, err := Decode(map[string]string{HeaderType: KindTaskCreated}, []byte(`{"taskId":"t1"}`))
		assert.ErrorIs(t, err, ErrUnroutable)
	})
}

func TestDecodeUnroutable(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":      `not json`,
		"array":         `[1,2,3]`,
		"no project":    `{"taskId":"t1"}`,
		"blank project": `{"projectId":"  "}`,
		"boolean":       `{"projectId":true}`,
		"trailing data": `{"projectId":"p1"} {}`,
		"null":          `null`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(nil, []byte(payload))
			assert.ErrorIs(t, err, ErrUnroutable)
		})
	}
}

func TestMarshalEnvelopeKeepsPayload(t *testing.T) {
	ev, err := Decode(map[string]string{HeaderType: KindTaskCreated}, []byte(createdPayload))
	require.NoError(t, err)

	out, err := MarshalEnvelope(ev)
	require.NoError(t, err)

	var env struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}
	require.NoError(t, json.Unmarshal(out, &env))
	assert.Equal(t, KindTaskCreated, env.Type)
	assert.JSONEq(t, createdPayload, string(env.Event))
}
