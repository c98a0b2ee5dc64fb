// internal/channel/close_codes.go
package channel

import (
	"fmt"

	"github.com/coder/websocket"
)

// Custom close codes the game server may send. They are only used to label
// closures in logs; reconnect decisions never depend on them.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // unsupported subprotocol
	InvalidAuthTokenError websocket.StatusCode = 3001 // credential rejected or expired
	InvalidUserIDError    websocket.StatusCode = 3002 // user id in the credential is malformed
	InvalidMatchError     websocket.StatusCode = 3003 // the requested match does not exist
)

// describeClose labels the close status carried by a transport error.
func describeClose(err error) string {
	status := websocket.CloseStatus(err)
	switch status {
	case -1:
		return "no close frame"
	case BadSubprotocolError:
		return "bad subprotocol"
	case InvalidAuthTokenError:
		return "invalid auth token"
	case InvalidUserIDError:
		return "invalid user id"
	case InvalidMatchError:
		return "invalid match"
	default:
		return fmt.Sprintf("%v", status)
	}
}

// cleanClose reports whether err carries a normal or going-away close frame.
func cleanClose(err error) bool {
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
