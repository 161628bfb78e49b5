package rabbitmq_test

import (
	"encoding/json"
	"testing"
	"time"

	"kalm/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("ART", -3*3600))
	body, err := rabbitmq.Encode("account.upgraded", map[string]interface{}{"accountId": "a1"}, at)
	require.NoError(t, err)

	var ev rabbitmq.Event
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, "account.upgraded", ev.Name)
	assert.Equal(t, "a1", ev.Data["accountId"])
	assert.True(t, ev.OccurredAt.Equal(at))
	assert.Contains(t, string(body), `"event":"account.upgraded"`)
}

func TestEncodeRejectsUnmarshalableData(t *testing.T) {
	_, err := rabbitmq.Encode("bad", map[string]interface{}{"ch": make(chan int)}, time.Now())
	assert.Error(t, err)
}
