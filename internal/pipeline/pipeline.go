package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/assembler"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

// State is the execution pipeline's position for one swap attempt.
type State string

const (
	StateIdle                 State = "idle"
	StateQuoting              State = "quoting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSimulating           State = "simulating"
	StateSimFailed            State = "sim_failed"
	StateAwaitingSend         State = "awaiting_send"
	StateSent                 State = "sent"
	StateSendFailed           State = "send_failed"
)

// Requoter produces a fresh quote at confirmation time. The displayed
// quote is never trusted for commitment: market conditions may have
// moved since it was rendered.
type Requoter func(ctx context.Context) (*amm.Quote, error)

// Builder assembles a transaction for a committed quote.
type Builder func(ctx context.Context, q *amm.Quote) (*assembler.AssembledTransaction, error)

// Pipeline drives one swap attempt through simulate-before-send.
// Submission is only reachable after a successful simulation in the
// same attempt; a failed submission is terminal for the attempt.
type Pipeline struct {
	sim    TxSimulator
	sender TxSender
	logger *logrus.Logger

	mu       sync.Mutex
	state    State
	quote    *amm.Quote
	tx       *assembler.AssembledTransaction
	simErr   string
	sendErr  string
	sig      string
	simLogs  []string
	simUnits uint64
}

// TxSimulator is the simulation dependency.
type TxSimulator interface {
	Simulate(ctx context.Context, tx *assembler.AssembledTransaction) (*wallet.SimulationResult, error)
}

// TxSender is the submission dependency.
type TxSender interface {
	Send(ctx context.Context, tx *assembler.AssembledTransaction) (string, error)
}

func New(sim TxSimulator, sender TxSender, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{sim: sim, sender: sender, logger: logger, state: StateIdle}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result reports the terminal details of the attempt so far.
type Result struct {
	State     State
	Quote     *amm.Quote
	Signature string
	SimError  string
	SendError string
	SimLogs   []string
	SimUnits  uint64
}

func (p *Pipeline) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{
		State:     p.state,
		Quote:     p.quote,
		Signature: p.sig,
		SimError:  p.simErr,
		SendError: p.sendErr,
		SimLogs:   p.simLogs,
		SimUnits:  p.simUnits,
	}
}

// Prepare re-quotes and enters AwaitingConfirmation. The attempt commits
// to this fresh quote, not whatever was last displayed.
func (p *Pipeline) Prepare(ctx context.Context, requote Requoter) error {
	p.mu.Lock()
	if p.state != StateIdle {
		s := p.state
		p.mu.Unlock()
		return fmt.Errorf("cannot prepare from state %q", s)
	}
	p.state = StateQuoting
	p.mu.Unlock()

	q, err := requote(ctx)
	if err != nil {
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		return fmt.Errorf("re-quote failed: %w", err)
	}

	p.mu.Lock()
	p.quote = q
	p.state = StateAwaitingConfirmation
	p.mu.Unlock()
	return nil
}

// Simulate assembles the transaction for the committed quote and runs it
// through the simulator. A simulation failure halts the attempt with the
// simulator's reported error; it never reaches submission.
func (p *Pipeline) Simulate(ctx context.Context, build Builder) error {
	p.mu.Lock()
	if p.state != StateAwaitingConfirmation {
		s := p.state
		p.mu.Unlock()
		return fmt.Errorf("cannot simulate from state %q", s)
	}
	q := p.quote
	p.state = StateSimulating
	p.mu.Unlock()

	tx, err := build(ctx, q)
	if err != nil {
		p.mu.Lock()
		p.state = StateSimFailed
		p.simErr = err.Error()
		p.mu.Unlock()
		return fmt.Errorf("assembly failed: %w", err)
	}

	res, err := p.sim.Simulate(ctx, tx)
	if err != nil {
		p.mu.Lock()
		p.state = StateSimFailed
		p.simErr = err.Error()
		if res != nil {
			p.simErr = res.Error
			p.simLogs = res.Logs
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.tx = tx
	p.state = StateAwaitingSend
	if res != nil {
		p.simLogs = res.Logs
		p.simUnits = res.UnitsConsumed
	}
	p.mu.Unlock()
	return nil
}

// Submit sends the simulated transaction. Failure is terminal for this
// attempt: there is no automatic resubmission, and the node's error is
// surfaced verbatim.
func (p *Pipeline) Submit(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.state != StateAwaitingSend {
		s := p.state
		p.mu.Unlock()
		return "", fmt.Errorf("cannot submit from state %q", s)
	}
	tx := p.tx
	p.mu.Unlock()

	sig, err := p.sender.Send(ctx, tx)
	if err != nil {
		p.mu.Lock()
		p.state = StateSendFailed
		p.sendErr = err.Error()
		p.mu.Unlock()
		return "", err
	}

	p.mu.Lock()
	p.state = StateSent
	p.sig = sig
	p.mu.Unlock()

	p.logger.WithField("signature", sig).Info("transaction submitted")
	return sig, nil
}

// Retry rewinds a failed simulation back to the confirmation step so the
// caller can re-run it. Send failures are terminal and require a fresh
// pipeline.
func (p *Pipeline) Retry() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateSimFailed {
		return fmt.Errorf("cannot retry from state %q", p.state)
	}
	p.state = StateAwaitingConfirmation
	p.simErr = ""
	p.simLogs = nil
	return nil
}
