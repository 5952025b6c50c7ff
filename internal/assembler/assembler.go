package assembler

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

// Kind tags the two transaction forms so branching over an assembled
// transaction is exhaustive.
type Kind string

const (
	KindLegacy    Kind = "legacy"
	KindVersioned Kind = "versioned"
)

// AssembledTransaction is a fully signed transaction ready for
// simulation and submission. Constructed fresh per swap attempt,
// never reused.
type AssembledTransaction struct {
	Kind                 Kind
	Tx                   *solana.Transaction
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	AuxSignerCount       int
}

// BlockhashSource provides a recent blockhash for assembly.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment ...string) (wallet.Blockhash, error)
}

// Assembler composes heterogeneous instruction batches into one
// transaction, fee payer and blockhash attached.
type Assembler struct {
	feePayer   solana.PrivateKey
	blockhashs BlockhashSource
	logger     *logrus.Logger
}

func New(feePayer solana.PrivateKey, source BlockhashSource, logger *logrus.Logger) *Assembler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Assembler{feePayer: feePayer, blockhashs: source, logger: logger}
}

// Flatten orders all main instructions in batch order, then appends every
// cleanup instruction after the last main instruction. Cleanup is never
// interleaved with main instructions. The second return value is the
// combined auxiliary signer list.
func Flatten(batches []amm.InnerBatch) ([]solana.Instruction, []solana.PrivateKey) {
	var ixs []solana.Instruction
	var cleanup []solana.Instruction
	var signers []solana.PrivateKey

	for _, b := range batches {
		ixs = append(ixs, b.Instructions...)
		if b.Cleanup != nil {
			cleanup = append(cleanup, b.Cleanup)
		}
		signers = append(signers, b.Signers...)
	}

	return append(ixs, cleanup...), signers
}

// Build flattens the batches into one legacy or versioned transaction and
// signs it: auxiliary signers first, the custodial fee payer last. The
// fee payer's signature must be produced after instruction-derived
// signers are attached, since some signers authorize instruction content
// the fee payer never inspects.
func (a *Assembler) Build(ctx context.Context, batches []amm.InnerBatch, versioned bool) (*AssembledTransaction, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("no instruction batches to assemble")
	}

	ixs, auxSigners := Flatten(batches)
	if len(ixs) == 0 {
		return nil, fmt.Errorf("instruction batches are empty")
	}

	bh, err := a.blockhashs.GetLatestBlockhash(ctx, "processed")
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	feePayerPub := a.feePayer.PublicKey()

	tx, err := solana.NewTransaction(
		ixs,
		bh.Hash,
		solana.TransactionPayer(feePayerPub),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	kind := KindLegacy
	if versioned {
		tx.Message.SetVersion(solana.MessageVersionV0)
		kind = KindVersioned
	}

	if err := signAuxThenFeePayer(tx, auxSigners, a.feePayer); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"kind":         kind,
		"instructions": len(ixs),
		"aux_signers":  len(auxSigners),
	}).Debug("assembled transaction")

	return &AssembledTransaction{
		Kind:                 kind,
		Tx:                   tx,
		Blockhash:            bh.Hash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
		AuxSignerCount:       len(auxSigners),
	}, nil
}

func signAuxThenFeePayer(tx *solana.Transaction, aux []solana.PrivateKey, feePayer solana.PrivateKey) error {
	if len(aux) > 0 {
		byPub := make(map[solana.PublicKey]*solana.PrivateKey, len(aux))
		for i := range aux {
			k := aux[i]
			byPub[k.PublicKey()] = &k
		}
		if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
			return byPub[key]
		}); err != nil {
			return fmt.Errorf("failed to apply auxiliary signatures: %w", err)
		}
	}

	feePayerPub := feePayer.PublicKey()
	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(feePayerPub) {
			return &feePayer
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to sign as fee payer: %w", err)
	}

	return nil
}
