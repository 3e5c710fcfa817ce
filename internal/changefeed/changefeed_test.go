package changefeed

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"kvedit/internal/store"
)

func TestEmit_OneMessagePerWrite(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		require.Equal(t, "edits", msg.Topic)
		require.Equal(t, "u1", string(key))
		require.Len(t, msg.Headers, 1)
		require.Equal(t, "column_family", string(msg.Headers[0].Key))
		require.Equal(t, "users", string(msg.Headers[0].Value))
		return nil
	})
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		require.Equal(t, "u2", string(key))
		return nil
	})

	e := newWithProducer(Config{Topic: "edits"}, mp)
	e.Emit("users", []store.Write{
		{Key: []byte("u1"), Value: []byte(`{"age":31}`)},
		{Key: []byte("u2"), Value: []byte(`{"age":40}`)},
	})
	require.NoError(t, e.Close())
}

func TestEmit_DeliveryErrorDoesNotBlock(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	mp.ExpectInputAndFail(sarama.ErrNotLeaderForPartition)

	e := newWithProducer(Config{Topic: "edits"}, mp)
	e.Emit("users", []store.Write{{Key: []byte("u1"), Value: []byte("v")}})
	// Close drains the error channel; the failure is logged, not surfaced.
	require.NoError(t, e.Close())
}

func TestNew_RequiresBrokersAndTopic(t *testing.T) {
	_, err := New(Config{Enabled: true})
	require.Error(t, err)

	_, err = New(Config{Enabled: true, Brokers: []string{"localhost:9092"}})
	require.Error(t, err)
}
