package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord("task.events", "t1", map[string]string{"event-type": "task.updated"}, []byte(`{"a":1}`))

	assert.Equal(t, "task.events", rec.Topic)
	assert.Equal(t, []byte("t1"), rec.Key)
	assert.Equal(t, []byte(`{"a":1}`), rec.Value)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "event-type", rec.Headers[0].Key)
	assert.Equal(t, []byte("task.updated"), rec.Headers[0].Value)
}

func TestNewRequiresBrokersAndTopic(t *testing.T) {
	_, err := New(nil, "task.events")
	assert.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
