package ledger

import "context"

// Event names emitted by the game contract.
const (
	EventGameStarted = "GameStarted"
	EventStepResult  = "StepResult"
	EventGameLost    = "GameLost"
	EventCashout     = "Cashout"
)

// Contract method names.
const (
	MethodStartGame = "startGame"
	MethodPlayStep  = "playStep"
	MethodCashout   = "doCashout"
)

// Event is one structured log entry from a confirmation receipt or the
// historical event log. Args are decoded loosely; consumers pull the fields
// they expect and skip events that are missing them.
type Event struct {
	Name      string         `json:"name"`
	Block     uint64         `json:"block"`
	TxHash    string         `json:"transaction_hash"`
	Timestamp int64          `json:"timestamp"`
	Args      map[string]any `json:"args"`
}

// Uint64Arg reads a numeric argument. JSON numbers arrive as float64;
// gateways may also encode big values as decimal strings.
func (e Event) Uint64Arg(key string) (uint64, bool) {
	v, ok := e.Args[key]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case string:
		var out uint64
		for _, c := range n {
			if c < '0' || c > '9' {
				return 0, false
			}
			out = out*10 + uint64(c-'0')
		}
		return out, n != ""
	default:
		return 0, false
	}
}

func (e Event) StringArg(key string) (string, bool) {
	s, ok := e.Args[key].(string)
	return s, ok
}

func (e Event) BoolArg(key string) (bool, bool) {
	b, ok := e.Args[key].(bool)
	return b, ok
}

// Receipt is the confirmation of a submitted transaction. Succeeded=false
// carries the ledger's rejection reason.
type Receipt struct {
	TxHash       string  `json:"transaction_hash"`
	Block        uint64  `json:"block"`
	Succeeded    bool    `json:"succeeded"`
	RevertReason string  `json:"revert_reason,omitempty"`
	Events       []Event `json:"events"`
}

// FindEvent returns the first event with the given name.
func (r *Receipt) FindEvent(name string) (Event, bool) {
	for _, ev := range r.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

// Call describes one state-changing contract invocation. Value is a decimal
// amount of native currency attached to the call.
type Call struct {
	Method     string `json:"method"`
	SessionID  uint64 `json:"session_id,omitempty"`
	Difficulty uint8  `json:"difficulty,omitempty"`
	Value      string `json:"value,omitempty"`
}

// SessionState is a direct point lookup of the contract's session storage.
type SessionState struct {
	SessionID   uint64 `json:"session_id"`
	Player      string `json:"player"`
	Difficulty  uint8  `json:"difficulty"`
	Stake       string `json:"stake"`
	CurrentStep int    `json:"current_step"`
	Active      bool   `json:"active"`
	Lost        bool   `json:"lost"`
}

// Client abstracts the ledger gateway: submission of signed game calls,
// confirmation receipts, and the bounded-window event log. Signing and key
// custody live behind the gateway. Confirmation latency is externally
// determined; WaitReceipt blocks until the supplied context is done.
type Client interface {
	// SubmitCall broadcasts a state-changing call and returns its tx hash.
	SubmitCall(ctx context.Context, call Call) (string, error)

	// WaitReceipt blocks until the transaction is confirmed.
	WaitReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// HeadBlock returns the current chain head.
	HeadBlock(ctx context.Context) (uint64, error)

	// QueryEvents returns events by name in [fromBlock, toBlock], optionally
	// filtered to one session. The range must not exceed MaxQueryWindow.
	QueryEvents(ctx context.Context, name string, fromBlock, toBlock uint64, sessionID *uint64) ([]Event, error)

	// GetSession reads current session storage directly.
	GetSession(ctx context.Context, sessionID uint64) (*SessionState, error)

	// EntropyFee returns the oracle fee a playStep call must attach on
	// entropy-based contract variants.
	EntropyFee(ctx context.Context) (string, error)

	// MaxQueryWindow is the widest block range a single QueryEvents call may
	// span. An external ledger constraint, not a client policy.
	MaxQueryWindow() uint64
}
