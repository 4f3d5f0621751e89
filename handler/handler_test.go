package handler_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heetch/kroute/codec"
	"github.com/heetch/kroute/common"
	"github.com/heetch/kroute/handler"
)

type counter struct {
	calls []string
}

func (c *counter) Process(_ context.Context, key string, _ []byte) error {
	c.calls = append(c.calls, key)
	return nil
}

type appState struct {
	Name string
}

// HandlerFunc can be used as a Handler.
func TestHandlerFunc(t *testing.T) {
	var calls int
	var h handler.Handler = handler.HandlerFunc(func(_ context.Context, key string, payload []byte) error {
		calls++
		require.Equal(t, "model-key", key)
		require.Equal(t, []byte("p"), payload)
		return nil
	})
	require.NoError(t, h.Process(context.Background(), "model-key", []byte("p")))
	require.Equal(t, 1, calls)
}

func TestBind(t *testing.T) {
	state := &appState{Name: "svc"}
	var seen *appState
	h := handler.Bind[appState](handler.StateHandlerFunc[appState](func(_ context.Context, key string, _ []byte, s *appState) error {
		seen = s
		if key == "fail" {
			return errors.New("boom")
		}
		return nil
	}), state)

	require.NoError(t, h.Process(context.Background(), "ok", nil))
	require.Same(t, state, seen)
	require.Equal(t, "svc", seen.Name)
	require.EqualError(t, h.Process(context.Background(), "fail", nil), "boom")
}

func TestBindNilHandler(t *testing.T) {
	require.Nil(t, handler.Bind[appState](nil, &appState{}))
}

func TestKeys(t *testing.T) {
	a, b := new(counter), new(counter)
	h := handler.Keys{"a": a, "b": b}

	require.NoError(t, h.Process(context.Background(), "a", nil))
	require.NoError(t, h.Process(context.Background(), "b", nil))
	require.NoError(t, h.Process(context.Background(), "a", nil))
	require.Equal(t, []string{"a", "a"}, a.calls)
	require.Equal(t, []string{"b"}, b.calls)

	err := h.Process(context.Background(), "unknown-key", []byte("x"))
	require.EqualError(t, err, `no handler registered for key "unknown-key"`)
	require.True(t, errors.Is(err, handler.ErrKeyNotRegistered))

	var knr *handler.KeyNotRegisteredError
	require.True(t, errors.As(err, &knr))
	require.Equal(t, "unknown-key", knr.Key)
}

func TestStateKeys(t *testing.T) {
	state := &appState{Name: "svc"}
	var names []string
	h := handler.Bind[appState](handler.StateKeys[appState]{
		"model-key": handler.StateHandlerFunc[appState](func(_ context.Context, _ string, _ []byte, s *appState) error {
			names = append(names, s.Name)
			return nil
		}),
	}, state)

	require.NoError(t, h.Process(context.Background(), "model-key", nil))
	require.Equal(t, []string{"svc"}, names)
	require.True(t, errors.Is(h.Process(context.Background(), "other", nil), handler.ErrKeyNotRegistered))
}

func TestRequirePayload(t *testing.T) {
	_, err := handler.RequirePayload(nil)
	require.Equal(t, handler.ErrPayloadMissing, err)

	p, err := handler.RequirePayload([]byte{})
	require.NoError(t, err)
	require.Equal(t, []byte{}, p)
}

func TestDecodePayload(t *testing.T) {
	type model struct {
		Data  string `json:"data"`
		Data2 string `json:"data2"`
	}

	var m model
	require.NoError(t, handler.DecodePayload(codec.JSON(), []byte(`{"data":"x","data2":"y"}`), &m))
	require.Equal(t, model{Data: "x", Data2: "y"}, m)

	err := handler.DecodePayload(codec.JSON(), nil, &m)
	require.True(t, errors.Is(err, handler.ErrPayloadMissing))

	err = handler.DecodePayload(codec.Binary(), []byte{0x05, 'a'}, new(string))
	require.True(t, errors.Is(err, handler.ErrDeserialize))
	require.True(t, errors.Is(err, codec.ErrDecode))
	require.EqualError(t, err, "cannot deserialize payload: unexpected end of data: need 5 bytes at offset 1, have 1")

	var de *handler.DeserializeError
	require.True(t, errors.As(err, &de))
}

func TestDiscard(t *testing.T) {
	require.NoError(t, handler.Discard.Process(context.Background(), "any", nil))
}

func TestLogging(t *testing.T) {
	tl := common.NewTestLogger(t)
	h := handler.Logging(tl.Logger)

	require.NoError(t, h.Process(context.Background(), "model-key", []byte("abc")))
	e := tl.RequireLogged("message received")
	fields := e.ContextMap()
	require.Equal(t, "model-key", fields["key"])
	require.Equal(t, int64(3), fields["payload_len"])
	require.Equal(t, true, fields["payload_present"])

	require.NoError(t, handler.Logging(nil).Process(context.Background(), "k", nil))
}
