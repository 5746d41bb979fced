package ntrip

// State is the connection lifecycle state of a Client. Exactly one State
// is active at any time; see transitionAllowed for the permitted graph.
type State int

const (
	Disconnected State = iota
	WaitingLLA
	Connecting
	Running
	Reconnecting
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case WaitingLLA:
		return "WaitingLLA"
	case Connecting:
		return "Connecting"
	case Running:
		return "Running"
	case Reconnecting:
		return "Reconnecting"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorKind classifies the most recent fault observed by the worker.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNetwork
	ErrorConnectTimeout
	ErrorBadPassword
	ErrorRequest
	ErrorRecvTimeout
	ErrorSocket
	ErrorReconnectFailed
)

func (e ErrorKind) String() string {
	switch e {
	case ErrorNone:
		return "None"
	case ErrorNetwork:
		return "NetworkError"
	case ErrorConnectTimeout:
		return "ConnectTimeout"
	case ErrorBadPassword:
		return "BadPassword"
	case ErrorRequest:
		return "RequestError"
	case ErrorRecvTimeout:
		return "RecvTimeout"
	case ErrorSocket:
		return "SocketError"
	case ErrorReconnectFailed:
		return "ReconnectFailed"
	default:
		return "Unknown"
	}
}

// retryable reports whether a fault of this kind should be handed to the
// reconnect governor rather than driving straight to Error.
func (e ErrorKind) retryable() bool {
	switch e {
	case ErrorNetwork, ErrorConnectTimeout, ErrorRecvTimeout, ErrorSocket:
		return true
	default:
		return false
	}
}

// transitionAllowed reports whether (from, to) is an edge of the state
// graph in spec §4.5. Client.transition checks the worker's state changes
// against it; Connect, Disconnect, Reset, SetLocation/SetGgaString and the
// worker's stop path set the state directly, along edges of this graph.
func transitionAllowed(from, to State) bool {
	switch from {
	case Disconnected:
		return to == WaitingLLA || to == Connecting
	case WaitingLLA:
		return to == Connecting || to == Disconnected
	case Connecting:
		return to == Running || to == Reconnecting || to == Error || to == Disconnected
	case Running:
		return to == Reconnecting || to == Error || to == Disconnected
	case Reconnecting:
		return to == Connecting || to == Error || to == Disconnected
	case Error:
		return to == Disconnected
	default:
		return false
	}
}
