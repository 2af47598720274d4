package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) string {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Upper", func(_ context.Context, params json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return echoParams{Text: p.Text + "!"}, nil
	})
	s.Register("Echo.Fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})
	assert.Equal(t, 2, s.MethodCount())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

func TestCallRoundTrip(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	for _, text := range []string{"a", "b"} {
		var out echoParams
		require.NoError(t, c.Call(context.Background(), "Echo.Upper", echoParams{Text: text}, &out))
		assert.Equal(t, text+"!", out.Text)
	}
}

func TestCallErrors(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Fail", nil, nil)
	assert.ErrorContains(t, err, "nope")

	err = c.Call(context.Background(), "Echo.Missing", nil, nil)
	assert.ErrorContains(t, err, "unknown method")
}
