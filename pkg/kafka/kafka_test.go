package kafka

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Generation string `json:"generation"`
	Documents  int    `json:"documents"`
}

func TestEncodeAndDecode(t *testing.T) {
	messages, err := encode([]Event{
		{Key: "g1", Value: payload{Generation: "g1", Documents: 3}},
		{Key: "g2", Value: payload{Generation: "g2"}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "g1", string(messages[0].Key))
	assert.JSONEq(t, `{"generation":"g1","documents":3}`, string(messages[0].Value))

	got, err := DecodeJSON[payload](messages[0].Value)
	require.NoError(t, err)
	assert.Equal(t, payload{Generation: "g1", Documents: 3}, got)
}

func TestEncodeRejectsUnmarshalableValue(t *testing.T) {
	_, err := encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `"bad"`)
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[payload]([]byte("{"))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestPublishBatchEmpty(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "t")
	defer p.Close()
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}
