// internal/game/events.go
package game

// Events receives everything the session wants to show its owner. Methods
// run on the channel's callback goroutine and must not block for long.
type Events interface {
	Connected()
	Disconnected()
	Balance(amount float64)
	Chat(from, text string)
	Notice(text string)
	MatchStarted()
	BetSettled(res BetResult)
	MatchEnded()
	// Error receives *ServerError for server-reported failures and the
	// channel's own errors otherwise.
	Error(err error)
}

// EventFuncs adapts plain functions to Events. Nil fields are no-ops.
type EventFuncs struct {
	OnConnected    func()
	OnDisconnected func()
	OnBalance      func(amount float64)
	OnChat         func(from, text string)
	OnNotice       func(text string)
	OnMatchStarted func()
	OnBetSettled   func(res BetResult)
	OnMatchEnded   func()
	OnError        func(err error)
}

func (e EventFuncs) Connected() {
	if e.OnConnected != nil {
		e.OnConnected()
	}
}

func (e EventFuncs) Disconnected() {
	if e.OnDisconnected != nil {
		e.OnDisconnected()
	}
}

func (e EventFuncs) Balance(amount float64) {
	if e.OnBalance != nil {
		e.OnBalance(amount)
	}
}

func (e EventFuncs) Chat(from, text string) {
	if e.OnChat != nil {
		e.OnChat(from, text)
	}
}

func (e EventFuncs) Notice(text string) {
	if e.OnNotice != nil {
		e.OnNotice(text)
	}
}

func (e EventFuncs) MatchStarted() {
	if e.OnMatchStarted != nil {
		e.OnMatchStarted()
	}
}

func (e EventFuncs) BetSettled(res BetResult) {
	if e.OnBetSettled != nil {
		e.OnBetSettled(res)
	}
}

func (e EventFuncs) MatchEnded() {
	if e.OnMatchEnded != nil {
		e.OnMatchEnded()
	}
}

func (e EventFuncs) Error(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

// ServerError is a failure the game server reported in a message.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}
