// internal/game/session.go
package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jason-s-yu/dicebet/internal/channel"
	"github.com/sirupsen/logrus"
)

// MinBet is the smallest stake the server accepts.
const MinBet = 10

var (
	ErrNoChoice            = errors.New("choose even or odd before betting")
	ErrBetTooSmall         = fmt.Errorf("bet must be at least %d", MinBet)
	ErrInsufficientBalance = errors.New("bet exceeds available balance")
	ErrNoChannel           = errors.New("session has no channel attached")
)

// Choice is the parity a player bets on.
type Choice string

const (
	ChoiceNone Choice = ""
	ChoiceEven Choice = "even"
	ChoiceOdd  Choice = "odd"
)

// ParseChoice accepts "even"/"odd" and the Portuguese "par"/"impar" used by the web client.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "even", "par":
		return ChoiceEven, nil
	case "odd", "impar", "ímpar":
		return ChoiceOdd, nil
	default:
		return ChoiceNone, fmt.Errorf("unknown choice %q (want even or odd)", s)
	}
}

// Matches reports whether n has the parity c names.
func (c Choice) Matches(n int) bool {
	switch c {
	case ChoiceEven:
		return n%2 == 0
	case ChoiceOdd:
		return n%2 != 0
	}
	return false
}

// BetResult is the outcome of the last settled bet.
type BetResult struct {
	Number int
	// Result is the server's verdict, "win" or "lose".
	Result string
	Choice Choice
	Amount float64
	Won    bool
}

// Channel is the part of *channel.Manager the session drives.
type Channel interface {
	Send(v interface{}) error
	Disconnect()
}

// Session is one player's view of the dice game. It keeps the wallet and bet
// state current from server messages and builds outbound actions.
type Session struct {
	username string
	events   Events
	logger   *logrus.Entry
	router   *Router

	mu        sync.Mutex
	ch        Channel
	connected bool
	balance   float64
	choice    Choice
	stake     float64
	inMatch   bool
	lastBet   *BetResult
}

// NewSession creates a session for username. events may be nil.
func NewSession(username string, events Events, logger *logrus.Entry) *Session {
	if events == nil {
		events = EventFuncs{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{
		username: username,
		events:   events,
		logger:   logger.WithField("username", username),
		router:   NewRouter(),
	}
	s.routes()
	return s
}

// Attach binds the channel the session sends through. Call it before the
// channel connects so the wallet request on open has somewhere to go.
func (s *Session) Attach(ch Channel) {
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
}

// Handler returns the callbacks to install as channel.Config.Handler.
func (s *Session) Handler() channel.Handler {
	return channel.HandlerFuncs{
		Open:    s.onOpen,
		Message: s.onMessage,
		Close:   s.onClose,
		Error:   s.events.Error,
	}
}

func (s *Session) routes() {
	s.router.Handle("wallet", s.handleWallet)
	s.router.Handle("new_match", s.handleNewMatch)
	s.router.Handle("place_bet", s.handlePlaceBet)
	s.router.Handle("end_match", s.handleEndMatch)
	s.router.Handle("chat_message", s.handleChat)
	s.router.Handle("player_joined", s.handlePresence("joined the game"))
	s.router.Handle("player_left", s.handlePresence("left the game"))
	s.router.Handle("user_joined", s.handlePresence("joined the chat"))
	s.router.Handle("user_left", s.handlePresence("left the chat"))
	s.router.Handle("game_status", s.handleGameStatus)
	s.router.Handle("game_error", s.handleErrorMessage)
	s.router.Handle("error", s.handleErrorMessage)
	s.router.Fallback(func(msg channel.Message) {
		if text, ok := stringField(msg.Data, "message"); ok && text != "" {
			s.events.Notice(text)
			return
		}
		s.logger.Debugf("Unhandled message kind %q", msg.Kind())
	})
}

func (s *Session) onOpen() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.events.Connected()
	if err := s.RequestWallet(); err != nil {
		s.logger.Warnf("Failed to request wallet on open: %v", err)
	}
}

func (s *Session) onClose() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.events.Disconnected()
}

func (s *Session) onMessage(msg channel.Message) {
	// Any reply may carry a top-level error instead of its normal payload.
	if text, ok := stringField(msg.Data, "error"); ok && text != "" {
		s.events.Error(&ServerError{Message: text})
		s.refreshWallet()
		return
	}
	s.router.Route(msg)
}

func (s *Session) handleWallet(msg channel.Message) {
	data, _ := objectField(msg.Data, "data")
	balance, ok := numberField(data, "balance")
	if !ok {
		s.logger.Warnf("Wallet message without a usable balance: %s", msg.Raw())
		return
	}
	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
	s.events.Balance(balance)
}

func (s *Session) handleNewMatch(channel.Message) {
	s.mu.Lock()
	s.inMatch = true
	s.choice = ChoiceNone
	s.mu.Unlock()

	s.events.MatchStarted()
	s.refreshWallet()
}

func (s *Session) handlePlaceBet(msg channel.Message) {
	data, _ := objectField(msg.Data, "data")
	n, _ := numberField(data, "number")
	result, _ := stringField(data, "result")

	s.mu.Lock()
	res := BetResult{
		Number: int(n),
		Result: result,
		Choice: s.choice,
		Amount: s.stake,
		Won:    result == "win",
	}
	s.lastBet = &res
	s.mu.Unlock()

	s.events.BetSettled(res)
	s.refreshWallet()
}

func (s *Session) handleEndMatch(channel.Message) {
	s.mu.Lock()
	s.inMatch = false
	s.choice = ChoiceNone
	s.stake = 0
	s.lastBet = nil
	s.mu.Unlock()

	s.events.MatchEnded()
	s.refreshWallet()
}

// handleChat accepts both the flat {username,message} shape and the nested
// {data:{username,message}} shape.
func (s *Session) handleChat(msg channel.Message) {
	src := msg.Data
	if nested, ok := objectField(msg.Data, "data"); ok {
		src = nested
	}
	from, _ := stringField(src, "username")
	text, _ := stringField(src, "message")
	if text == "" {
		return
	}
	s.events.Chat(from, text)
}

func (s *Session) handlePresence(verb string) HandlerFunc {
	return func(msg channel.Message) {
		src := msg.Data
		if nested, ok := objectField(msg.Data, "data"); ok {
			src = nested
		}
		who, _ := stringField(src, "username")
		if who == "" {
			who = "someone"
		}
		s.events.Notice(who + " " + verb)
	}
}

func (s *Session) handleGameStatus(msg channel.Message) {
	if state, ok := stringField(msg.Data, "gameState"); ok && state != "" {
		s.events.Notice("game state: " + state)
	}
	if turn, ok := stringField(msg.Data, "currentTurn"); ok && turn != "" {
		s.events.Notice("turn: " + turn)
	}
}

func (s *Session) handleErrorMessage(msg channel.Message) {
	text, _ := stringField(msg.Data, "message")
	if text == "" {
		text = "unknown server error"
	}
	s.events.Error(&ServerError{Message: text})
}

// refreshWallet asks for the balance after a state change; failures are logged only.
func (s *Session) refreshWallet() {
	if err := s.RequestWallet(); err != nil {
		s.logger.Debugf("Wallet refresh skipped: %v", err)
	}
}

func (s *Session) send(v interface{}) error {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		return ErrNoChannel
	}
	return ch.Send(v)
}

// RequestWallet asks the server for the current balance.
func (s *Session) RequestWallet() error {
	return s.send(map[string]interface{}{"action": "wallet"})
}

// NewMatch starts a new match.
func (s *Session) NewMatch() error {
	return s.send(map[string]interface{}{"action": "new_match"})
}

// EndMatch ends the current match.
func (s *Session) EndMatch() error {
	return s.send(map[string]interface{}{"action": "end_match"})
}

// StartGame asks the server to start the shared game.
func (s *Session) StartGame() error {
	return s.send(map[string]interface{}{
		"type":     "start_game",
		"username": s.username,
	})
}

// Chat sends text to the room. Blank text is ignored.
func (s *Session) Chat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.send(map[string]interface{}{
		"type":     "chat_message",
		"message":  text,
		"username": s.username,
	})
}

// SelectChoice records the parity for the next bet.
func (s *Session) SelectChoice(c Choice) {
	s.mu.Lock()
	s.choice = c
	s.mu.Unlock()
}

// PlaceBet stakes amount on choice. ChoiceNone uses the selected choice.
// The amount must be at least MinBet and no more than the known balance.
func (s *Session) PlaceBet(amount float64, choice Choice) error {
	s.mu.Lock()
	if choice == ChoiceNone {
		choice = s.choice
	}
	balance := s.balance
	s.mu.Unlock()

	if choice != ChoiceEven && choice != ChoiceOdd {
		return ErrNoChoice
	}
	if amount < MinBet {
		return ErrBetTooSmall
	}
	if amount > balance {
		return ErrInsufficientBalance
	}

	err := s.send(map[string]interface{}{
		"action": "place_bet",
		"data": map[string]interface{}{
			"amount": amount,
			"choice": string(choice),
		},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.choice = choice
	s.stake = amount
	s.mu.Unlock()
	return nil
}

// Close disconnects the channel. The session can be attached again afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		ch.Disconnect()
	}
}

func (s *Session) Username() string { return s.username }

func (s *Session) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Session) Choice() Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.choice
}

// Connected reports whether the channel has an open transport.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) InMatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inMatch
}

// LastBet returns the most recent settled bet, if any in this match.
func (s *Session) LastBet() (BetResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastBet == nil {
		return BetResult{}, false
	}
	return *s.lastBet, true
}

func objectField(v interface{}, key string) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	inner, ok := obj[key].(map[string]interface{})
	return inner, ok
}

func stringField(v interface{}, key string) (string, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := obj[key].(string)
	return s, ok
}

// numberField reads a JSON number, also accepting numeric strings.
func numberField(v interface{}, key string) (float64, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch n := obj[key].(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
