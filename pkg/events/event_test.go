package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := BaseEvent{Type: "route.chosen", Data: map[string]interface{}{"route": "general-knowledge"}, OccurredAt: at}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "route.chosen", out.EventType())
	assert.True(t, at.Equal(out.Timestamp()))
	assert.Equal(t, "general-knowledge", out.Payload()["route"])
}

func TestDecodeRejectsUntyped(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
