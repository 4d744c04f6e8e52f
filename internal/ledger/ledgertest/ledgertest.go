// Package ledgertest provides an in-memory, scriptable ledger gateway for
// tests: step outcomes, reverts, transport failures, and malformed receipts
// can all be staged ahead of time.
package ledgertest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/models"
)

type Ledger struct {
	mu sync.Mutex

	// Caller is the address the gateway signs with.
	Caller string
	// Window is the bounded query span the fake enforces.
	Window uint64
	// Fee is the entropy oracle fee reported to entropy-variant adapters.
	Fee string

	// SubmitErr, when set, fails every SubmitCall at the transport level.
	SubmitErr error
	// ReceiptErr, when set, fails every WaitReceipt at the transport level.
	ReceiptErr error
	// RevertReason forces a revert for the named contract method.
	RevertReason map[string]string
	// OmitEvent drops the named event from receipts, simulating version skew.
	OmitEvent map[string]bool
	// QueryErr, when set, can fail individual QueryEvents windows.
	QueryErr func(fromBlock, toBlock uint64) error
	// NextPayout overrides the computed payout of the next cashout.
	NextPayout string
	// Gate, when set, blocks WaitReceipt until a value is received. Used to
	// hold a transaction in flight for concurrency tests.
	Gate chan struct{}

	// SubmitCalls counts transactions that reached the ledger.
	SubmitCalls int

	head     uint64
	nextID   uint64
	nextTx   uint64
	sessions map[uint64]*ledger.SessionState
	events   []ledger.Event
	pending  map[string]ledger.Call
	steps    []bool
}

func New() *Ledger {
	return &Ledger{
		Caller:       "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		Window:       30,
		Fee:          "0.0001",
		RevertReason: make(map[string]string),
		OmitEvent:    make(map[string]bool),
		sessions:     make(map[uint64]*ledger.SessionState),
		pending:      make(map[string]ledger.Call),
	}
}

// ScriptSteps queues the outcomes of upcoming playStep calls. Unscripted
// steps succeed.
func (l *Ledger) ScriptSteps(outcomes ...bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, outcomes...)
}

func (l *Ledger) SetHead(h uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = h
}

// AppendEvent seeds the historical event log directly, bypassing gameplay.
func (l *Ledger) AppendEvent(ev ledger.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if ev.Block > l.head {
		l.head = ev.Block
	}
}

// Seed installs session storage directly.
func (l *Ledger) Seed(s *ledger.SessionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *s
	l.sessions[s.SessionID] = &cp
}

func (l *Ledger) SubmitCall(ctx context.Context, call ledger.Call) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SubmitErr != nil {
		return "", &ledger.TransportError{Op: "submit", Broadcast: false, Err: l.SubmitErr}
	}

	l.SubmitCalls++
	l.nextTx++
	txHash := fmt.Sprintf("0xtx%04d", l.nextTx)
	l.pending[txHash] = call
	return txHash, nil
}

func (l *Ledger) WaitReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, &ledger.TransportError{Op: "confirmation", Broadcast: true, Err: ctx.Err()}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ReceiptErr != nil {
		return nil, &ledger.TransportError{Op: "confirmation", Broadcast: true, Err: l.ReceiptErr}
	}

	call, ok := l.pending[txHash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction: %s", txHash)
	}
	delete(l.pending, txHash)

	if reason, ok := l.RevertReason[call.Method]; ok {
		return nil, classify(reason)
	}

	l.head++
	receipt := &ledger.Receipt{
		TxHash:    txHash,
		Block:     l.head,
		Succeeded: true,
	}

	switch call.Method {
	case ledger.MethodStartGame:
		l.execStart(call, receipt)
	case ledger.MethodPlayStep:
		if err := l.execStep(call, receipt); err != nil {
			return nil, err
		}
	case ledger.MethodCashout:
		if err := l.execCashout(call, receipt); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown method: %s", call.Method)
	}

	return receipt, nil
}

func (l *Ledger) execStart(call ledger.Call, receipt *ledger.Receipt) {
	id := l.nextID
	l.nextID++

	// The contract resolves the first step as part of starting.
	l.sessions[id] = &ledger.SessionState{
		SessionID:   id,
		Player:      l.Caller,
		Difficulty:  call.Difficulty,
		Stake:       call.Value,
		CurrentStep: 1,
		Active:      true,
	}

	l.emit(receipt, ledger.Event{
		Name: ledger.EventGameStarted,
		Args: map[string]any{
			"session_id": id,
			"player":     l.Caller,
			"difficulty": int(call.Difficulty),
			"stake":      call.Value,
		},
	})
}

func (l *Ledger) execStep(call ledger.Call, receipt *ledger.Receipt) error {
	s, ok := l.sessions[call.SessionID]
	if !ok || !s.Active {
		return classify("game not active")
	}
	if s.Player != l.Caller {
		return classify(ledger.RevertNotYourGame)
	}

	succeeded := true
	if len(l.steps) > 0 {
		succeeded = l.steps[0]
		l.steps = l.steps[1:]
	}

	if succeeded {
		s.CurrentStep++
	} else {
		s.Active = false
		s.Lost = true
	}

	l.emit(receipt, ledger.Event{
		Name: ledger.EventStepResult,
		Args: map[string]any{
			"session_id": s.SessionID,
			"step":       s.CurrentStep,
			"succeeded":  succeeded,
		},
	})

	if !succeeded {
		l.emit(receipt, ledger.Event{
			Name: ledger.EventGameLost,
			Args: map[string]any{
				"session_id": s.SessionID,
				"step":       s.CurrentStep,
			},
		})
	}

	return nil
}

func (l *Ledger) execCashout(call ledger.Call, receipt *ledger.Receipt) error {
	s, ok := l.sessions[call.SessionID]
	if !ok || !s.Active {
		return classify("game not active")
	}
	if s.Player != l.Caller {
		return classify(ledger.RevertNotYourGame)
	}

	payout := l.NextPayout
	l.NextPayout = ""
	if payout == "" {
		stake, err := strconv.ParseFloat(s.Stake, 64)
		if err != nil {
			stake = 0
		}
		diff, _ := models.DifficultyFromIndex(s.Difficulty)
		payout = strconv.FormatFloat(stake*models.MultiplierFor(diff, s.CurrentStep), 'f', 4, 64)
	}

	s.Active = false

	l.emit(receipt, ledger.Event{
		Name: ledger.EventCashout,
		Args: map[string]any{
			"session_id": s.SessionID,
			"payout":     payout,
		},
	})

	return nil
}

func (l *Ledger) emit(receipt *ledger.Receipt, ev ledger.Event) {
	ev.Block = l.head
	ev.TxHash = receipt.TxHash
	ev.Timestamp = int64(l.head) * 12

	l.events = append(l.events, ev)

	if !l.OmitEvent[ev.Name] {
		receipt.Events = append(receipt.Events, ev)
	}
}

func (l *Ledger) HeadBlock(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

func (l *Ledger) QueryEvents(ctx context.Context, name string, fromBlock, toBlock uint64, sessionID *uint64) ([]ledger.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if toBlock >= fromBlock && toBlock-fromBlock+1 > l.Window {
		return nil, fmt.Errorf("query window [%d,%d] exceeds %d blocks", fromBlock, toBlock, l.Window)
	}

	if l.QueryErr != nil {
		if err := l.QueryErr(fromBlock, toBlock); err != nil {
			return nil, err
		}
	}

	var out []ledger.Event
	for _, ev := range l.events {
		if ev.Name != name || ev.Block < fromBlock || ev.Block > toBlock {
			continue
		}
		if sessionID != nil {
			id, ok := ev.Uint64Arg("session_id")
			if !ok || id != *sessionID {
				continue
			}
		}
		out = append(out, ev)
	}

	return out, nil
}

func (l *Ledger) GetSession(ctx context.Context, sessionID uint64) (*ledger.SessionState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %d not found", sessionID)
	}

	cp := *s
	return &cp, nil
}

func (l *Ledger) EntropyFee(ctx context.Context) (string, error) {
	return l.Fee, nil
}

func (l *Ledger) MaxQueryWindow() uint64 {
	return l.Window
}

// classify mirrors the gateway's revert mapping.
func classify(reason string) error {
	switch reason {
	case ledger.RevertNotYourGame:
		return &ledger.AuthorizationError{Reason: reason}
	case ledger.RevertInsolvent:
		return &ledger.InsolvencyError{Reason: reason}
	case ledger.RevertZeroStake:
		return &ledger.ValidationError{Reason: reason}
	default:
		return fmt.Errorf("ledger rejected request: %s", reason)
	}
}
