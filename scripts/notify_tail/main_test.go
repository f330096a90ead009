package main

import (
	"encoding/json"
	"testing"

	"github.com/amirasaad/creditcore/pkg/notification"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, kind string, v any) kafka.Message {
	t.Helper()
	value, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Value: value, Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}}}
}

func TestDescribe(t *testing.T) {
	line, err := describe(message(t, "success", notification.SuccessNotice{
		UserID: 1, OperationID: "op-1", Message: "20.00 CRD spent on image generation. Balance: 30.00 CRD.",
	}))
	require.NoError(t, err)
	assert.Contains(t, line, "user=1 op=op-1")

	line, err = describe(message(t, "failure", notification.FailureNotice{
		UserID: 2, Reason: "expired", Reference: "inv-7",
	}))
	require.NoError(t, err)
	assert.Contains(t, line, "reason=expired")

	_, err = describe(kafka.Message{Value: []byte("{}")})
	assert.Error(t, err)
}
