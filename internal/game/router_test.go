package game

import (
	"testing"

	"github.com/jason-s-yu/dicebet/internal/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, frame string) channel.Message {
	t.Helper()
	msg, err := channel.DecodeMessage([]byte(frame))
	require.NoError(t, err)
	return msg
}

func TestRouterDispatchesByKind(t *testing.T) {
	r := NewRouter()
	var got []string
	r.Handle("wallet", func(channel.Message) { got = append(got, "wallet") })
	r.Handle("chat_message", func(channel.Message) { got = append(got, "chat") })
	r.Fallback(func(msg channel.Message) { got = append(got, "fallback:"+msg.Kind()) })

	assert.True(t, r.Route(decode(t, `{"action":"wallet","data":{"balance":1}}`)))
	assert.True(t, r.Route(decode(t, `{"type":"chat_message","action":"wallet"}`)))
	assert.False(t, r.Route(decode(t, `{"type":"mystery"}`)))
	assert.False(t, r.Route(decode(t, `[1,2,3]`)))

	assert.Equal(t, []string{"wallet", "chat", "fallback:mystery", "fallback:"}, got)
}

func TestRouterWithoutFallback(t *testing.T) {
	r := NewRouter()
	assert.NotPanics(t, func() {
		assert.False(t, r.Route(decode(t, `{"type":"nobody"}`)))
	})
}

func TestRouterReplacesHandler(t *testing.T) {
	r := NewRouter()
	calls := 0
	r.Handle("x", func(channel.Message) { calls += 10 })
	r.Handle("x", func(channel.Message) { calls++ })
	r.Route(decode(t, `{"type":"x"}`))
	assert.Equal(t, 1, calls)
}
