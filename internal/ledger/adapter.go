package ledger

import (
	"context"

	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/models"
)

// Variant identifies which deployed flavor of the game contract the gateway
// fronts. Declared in configuration instead of sniffing the ABI at runtime.
type Variant string

const (
	// VariantStandard resolves step randomness inside the contract.
	VariantStandard Variant = "standard"
	// VariantEntropy pulls randomness from an external entropy oracle and
	// charges an oracle fee on every playStep call.
	VariantEntropy Variant = "entropy"
)

// Adapter translates session-level intents into ledger transactions and
// parses confirmations into typed outcomes. It never retries on its own:
// blind retry of a value-transferring call risks a duplicate stake, so
// retry is the caller's policy decision.
type Adapter struct {
	client  Client
	variant Variant
}

func NewAdapter(client Client, variant Variant) *Adapter {
	return &Adapter{
		client:  client,
		variant: variant,
	}
}

// Client exposes the underlying ledger client for read-only consumers.
func (a *Adapter) Client() Client {
	return a.client
}

type StartOutcome struct {
	SessionID uint64
	Stake     string
	TxHash    string
}

type StepOutcome struct {
	Succeeded bool
	NewStep   int
	TxHash    string
}

type CashoutOutcome struct {
	Payout string
	TxHash string
}

// StartGame submits a value-bearing startGame call and extracts the
// assigned session id from the GameStarted confirmation event.
func (a *Adapter) StartGame(ctx context.Context, difficulty models.Difficulty, stake string) (*StartOutcome, error) {
	if !models.ValidStake(stake) {
		return nil, &ValidationError{Reason: "stake must be a positive amount"}
	}

	idx, err := difficulty.Index()
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	receipt, err := a.submit(ctx, Call{
		Method:     MethodStartGame,
		Difficulty: idx,
		Value:      stake,
	})
	if err != nil {
		return nil, err
	}

	ev, ok := receipt.FindEvent(EventGameStarted)
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventGameStarted, TxHash: receipt.TxHash}
	}

	sessionID, ok := ev.Uint64Arg("session_id")
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventGameStarted, TxHash: receipt.TxHash}
	}

	confirmedStake := stake
	if s, ok := ev.StringArg("stake"); ok {
		confirmedStake = s
	}

	return &StartOutcome{
		SessionID: sessionID,
		Stake:     confirmedStake,
		TxHash:    receipt.TxHash,
	}, nil
}

// PlayStep submits a playStep call and extracts the resolved outcome from
// the StepResult confirmation event. Entropy-based contracts require the
// oracle fee attached as value.
func (a *Adapter) PlayStep(ctx context.Context, sessionID uint64) (*StepOutcome, error) {
	call := Call{
		Method:    MethodPlayStep,
		SessionID: sessionID,
	}

	if a.variant == VariantEntropy {
		fee, err := a.client.EntropyFee(ctx)
		if err != nil {
			return nil, &TransportError{Op: "entropy fee lookup", Broadcast: false, Err: err}
		}
		call.Value = fee
	}

	receipt, err := a.submit(ctx, call)
	if err != nil {
		return nil, err
	}

	ev, ok := receipt.FindEvent(EventStepResult)
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventStepResult, TxHash: receipt.TxHash}
	}

	succeeded, ok := ev.BoolArg("succeeded")
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventStepResult, TxHash: receipt.TxHash}
	}

	newStep, ok := ev.Uint64Arg("step")
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventStepResult, TxHash: receipt.TxHash}
	}

	return &StepOutcome{
		Succeeded: succeeded,
		NewStep:   int(newStep),
		TxHash:    receipt.TxHash,
	}, nil
}

// Cashout submits a doCashout call and extracts the ledger-confirmed payout
// from the Cashout event. Insolvency surfaces as InsolvencyError so callers
// can treat it as recoverable rather than a game outcome.
func (a *Adapter) Cashout(ctx context.Context, sessionID uint64) (*CashoutOutcome, error) {
	receipt, err := a.submit(ctx, Call{
		Method:    MethodCashout,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	ev, ok := receipt.FindEvent(EventCashout)
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventCashout, TxHash: receipt.TxHash}
	}

	payout, ok := ev.StringArg("payout")
	if !ok {
		return nil, &ProtocolMismatchError{Event: EventCashout, TxHash: receipt.TxHash}
	}

	return &CashoutOutcome{
		Payout: payout,
		TxHash: receipt.TxHash,
	}, nil
}

func (a *Adapter) submit(ctx context.Context, call Call) (*Receipt, error) {
	txHash, err := a.client.SubmitCall(ctx, call)
	if err != nil {
		return nil, err
	}

	logrus.Debugf("submitted %s as %s, awaiting confirmation", call.Method, txHash)

	return a.client.WaitReceipt(ctx, txHash)
}
