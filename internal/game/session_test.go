package game

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu           sync.Mutex
	sent         []map[string]interface{}
	sendErr      error
	disconnected int
}

func (f *fakeChannel) Send(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	// Round-trip through JSON so assertions see what the server would.
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(buf, &m); err != nil {
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	f.disconnected++
	f.mu.Unlock()
}

func (f *fakeChannel) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if a, ok := m["action"].(string); ok {
			out = append(out, a)
		} else if ty, ok := m["type"].(string); ok {
			out = append(out, ty)
		}
	}
	return out
}

func (f *fakeChannel) last() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type eventLog struct {
	mu       sync.Mutex
	names    []string
	balances []float64
	bets     []BetResult
	chats    [][2]string
	notices  []string
	errs     []error
}

func (e *eventLog) add(name string) {
	e.mu.Lock()
	e.names = append(e.names, name)
	e.mu.Unlock()
}

func (e *eventLog) funcs() EventFuncs {
	return EventFuncs{
		OnConnected:    func() { e.add("connected") },
		OnDisconnected: func() { e.add("disconnected") },
		OnBalance: func(b float64) {
			e.add("balance")
			e.mu.Lock()
			e.balances = append(e.balances, b)
			e.mu.Unlock()
		},
		OnChat: func(from, text string) {
			e.add("chat")
			e.mu.Lock()
			e.chats = append(e.chats, [2]string{from, text})
			e.mu.Unlock()
		},
		OnNotice: func(text string) {
			e.add("notice")
			e.mu.Lock()
			e.notices = append(e.notices, text)
			e.mu.Unlock()
		},
		OnMatchStarted: func() { e.add("match_started") },
		OnBetSettled: func(res BetResult) {
			e.add("bet_settled")
			e.mu.Lock()
			e.bets = append(e.bets, res)
			e.mu.Unlock()
		},
		OnMatchEnded: func() { e.add("match_ended") },
		OnError: func(err error) {
			e.add("error")
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		},
	}
}

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestSession(t *testing.T) (*Session, *fakeChannel, *eventLog) {
	t.Helper()
	log := &eventLog{}
	s := NewSession("ana", log.funcs(), quietEntry())
	ch := &fakeChannel{}
	s.Attach(ch)
	return s, ch, log
}

func TestOpenRequestsWallet(t *testing.T) {
	s, ch, log := newTestSession(t)
	s.Handler().OnOpen()

	assert.True(t, s.Connected())
	assert.Equal(t, []string{"wallet"}, ch.actions())
	assert.Equal(t, []string{"connected"}, log.names)

	s.Handler().OnClose()
	assert.False(t, s.Connected())
	assert.Equal(t, []string{"connected", "disconnected"}, log.names)
}

func TestWalletUpdatesBalance(t *testing.T) {
	s, _, log := newTestSession(t)
	h := s.Handler()

	h.OnMessage(decode(t, `{"action":"wallet","data":{"balance":150.5}}`))
	assert.Equal(t, 150.5, s.Balance())

	h.OnMessage(decode(t, `{"action":"wallet","data":{"balance":"42"}}`))
	assert.Equal(t, 42.0, s.Balance())

	h.OnMessage(decode(t, `{"action":"wallet","data":{}}`))
	assert.Equal(t, 42.0, s.Balance())
	assert.Equal(t, []float64{150.5, 42}, log.balances)
}

func TestMatchLifecycle(t *testing.T) {
	s, ch, log := newTestSession(t)
	h := s.Handler()
	h.OnMessage(decode(t, `{"action":"wallet","data":{"balance":100}}`))

	h.OnMessage(decode(t, `{"action":"new_match"}`))
	assert.True(t, s.InMatch())
	assert.Equal(t, ChoiceNone, s.Choice())

	require.NoError(t, s.PlaceBet(25, ChoiceOdd))
	last := ch.last()
	assert.Equal(t, "place_bet", last["action"])
	assert.Equal(t, map[string]interface{}{"amount": 25.0, "choice": "odd"}, last["data"])

	h.OnMessage(decode(t, `{"action":"place_bet","data":{"number":7,"result":"win"}}`))
	res, ok := s.LastBet()
	require.True(t, ok)
	assert.Equal(t, BetResult{Number: 7, Result: "win", Choice: ChoiceOdd, Amount: 25, Won: true}, res)
	assert.True(t, res.Choice.Matches(res.Number))

	h.OnMessage(decode(t, `{"action":"end_match"}`))
	assert.False(t, s.InMatch())
	assert.Equal(t, ChoiceNone, s.Choice())
	_, ok = s.LastBet()
	assert.False(t, ok)

	assert.Equal(t, []string{"wallet", "place_bet", "wallet", "wallet"}, ch.actions())
	assert.Equal(t, []string{"balance", "match_started", "bet_settled", "match_ended"}, log.names)
}

func TestPlaceBetValidation(t *testing.T) {
	s, ch, _ := newTestSession(t)
	s.Handler().OnMessage(decode(t, `{"action":"wallet","data":{"balance":50}}`))

	assert.ErrorIs(t, s.PlaceBet(20, ChoiceNone), ErrNoChoice)
	assert.ErrorIs(t, s.PlaceBet(9.99, ChoiceEven), ErrBetTooSmall)
	assert.ErrorIs(t, s.PlaceBet(50.01, ChoiceEven), ErrInsufficientBalance)
	assert.Empty(t, ch.actions())

	s.SelectChoice(ChoiceEven)
	require.NoError(t, s.PlaceBet(50, ChoiceNone))
	assert.Equal(t, "even", ch.last()["data"].(map[string]interface{})["choice"])
}

func TestPlaceBetSendFailureKeepsState(t *testing.T) {
	s, ch, _ := newTestSession(t)
	s.Handler().OnMessage(decode(t, `{"action":"wallet","data":{"balance":50}}`))
	ch.sendErr = errors.New("channel: not connected")

	assert.Error(t, s.PlaceBet(20, ChoiceOdd))
	assert.Equal(t, ChoiceNone, s.Choice())
}

func TestErrorFieldSurfacesAndRefreshesWallet(t *testing.T) {
	s, ch, log := newTestSession(t)
	s.Handler().OnMessage(decode(t, `{"action":"new_match","error":"player already in match"}`))

	require.Len(t, log.errs, 1)
	var se *ServerError
	require.ErrorAs(t, log.errs[0], &se)
	assert.Equal(t, "player already in match", se.Message)
	assert.False(t, s.InMatch())
	assert.Equal(t, []string{"wallet"}, ch.actions())
}

func TestGameErrorMessages(t *testing.T) {
	s, ch, log := newTestSession(t)
	h := s.Handler()
	h.OnMessage(decode(t, `{"type":"game_error","message":"not your turn"}`))
	h.OnMessage(decode(t, `{"type":"error"}`))

	require.Len(t, log.errs, 2)
	assert.EqualError(t, log.errs[0], "server: not your turn")
	assert.EqualError(t, log.errs[1], "server: unknown server error")
	assert.Empty(t, ch.actions())
}

func TestChatInboundAndOutbound(t *testing.T) {
	s, ch, log := newTestSession(t)
	h := s.Handler()

	h.OnMessage(decode(t, `{"type":"chat_message","message":"hi","username":"bia"}`))
	h.OnMessage(decode(t, `{"type":"chat_message","data":{"message":"yo","username":"caio"}}`))
	assert.Equal(t, [][2]string{{"bia", "hi"}, {"caio", "yo"}}, log.chats)

	require.NoError(t, s.Chat("  hello all "))
	require.NoError(t, s.Chat("   "))
	assert.Equal(t, map[string]interface{}{
		"type":     "chat_message",
		"message":  "hello all",
		"username": "ana",
	}, ch.last())
	assert.Len(t, ch.actions(), 1)
}

func TestOutboundActions(t *testing.T) {
	s, ch, _ := newTestSession(t)
	require.NoError(t, s.StartGame())
	assert.Equal(t, map[string]interface{}{"type": "start_game", "username": "ana"}, ch.last())
	require.NoError(t, s.NewMatch())
	require.NoError(t, s.EndMatch())
	require.NoError(t, s.RequestWallet())
	assert.Equal(t, []string{"start_game", "new_match", "end_match", "wallet"}, ch.actions())
}

func TestNoticesAndFallback(t *testing.T) {
	s, _, log := newTestSession(t)
	h := s.Handler()
	h.OnMessage(decode(t, `{"type":"player_joined","username":"bia"}`))
	h.OnMessage(decode(t, `{"type":"user_left","data":{"username":"caio"}}`))
	h.OnMessage(decode(t, `{"type":"game_status","gameState":"WAITING"}`))
	h.OnMessage(decode(t, `{"type":"announcement","message":"maintenance at 5"}`))
	h.OnMessage(decode(t, `{"type":"silent"}`))

	assert.Equal(t, []string{
		"bia joined the game",
		"caio left the chat",
		"game state: WAITING",
		"maintenance at 5",
	}, log.notices)
}

func TestNoChannelAttached(t *testing.T) {
	s := NewSession("ana", nil, quietEntry())
	assert.ErrorIs(t, s.RequestWallet(), ErrNoChannel)
	assert.NotPanics(t, s.Handler().OnOpen)
	assert.NotPanics(t, s.Close)
}

func TestCloseDisconnects(t *testing.T) {
	s, ch, _ := newTestSession(t)
	s.Close()
	assert.Equal(t, 1, ch.disconnected)
}

func TestChannelErrorsForwarded(t *testing.T) {
	s, _, log := newTestSession(t)
	boom := errors.New("dial refused")
	s.Handler().OnError(boom)
	require.Len(t, log.errs, 1)
	assert.Same(t, boom, log.errs[0])
}

func TestParseChoice(t *testing.T) {
	for in, want := range map[string]Choice{"even": ChoiceEven, " ODD ": ChoiceOdd, "par": ChoiceEven, "impar": ChoiceOdd} {
		got, err := ParseChoice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseChoice("both")
	assert.Error(t, err)

	assert.True(t, ChoiceEven.Matches(4))
	assert.False(t, ChoiceEven.Matches(3))
	assert.False(t, ChoiceNone.Matches(2))
}
