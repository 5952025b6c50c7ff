package assembler

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// SPL Associated Token Account program
	associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// TokenAccount describes the token account assembly will reference for
// one side of a swap. Exists reports whether the account is live
// on-chain; a placeholder (Exists=false) is still addressable but
// assembly never emits instructions to create it.
type TokenAccount struct {
	Address solana.PublicKey
	Exists  bool
}

// AccountResolver locates the caller's token account for a mint.
type AccountResolver interface {
	Resolve(ctx context.Context, owner, mint solana.PublicKey) (*TokenAccount, error)
}

// AccountChecker is the single read the ATA resolver needs from the node.
type AccountChecker interface {
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
}

// ATAResolver resolves the owner's associated token account for a mint,
// reusing it when present and synthesizing a placeholder otherwise.
type ATAResolver struct {
	checker AccountChecker
}

func NewATAResolver(checker AccountChecker) *ATAResolver {
	return &ATAResolver{checker: checker}
}

func (r *ATAResolver) Resolve(ctx context.Context, owner, mint solana.PublicKey) (*TokenAccount, error) {
	if r == nil || r.checker == nil {
		return nil, fmt.Errorf("account resolver: checker is nil")
	}

	ata, _, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	exists, err := r.checker.AccountExists(ctx, ata)
	if err != nil {
		return nil, err
	}

	return &TokenAccount{Address: ata, Exists: exists}, nil
}

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (ata solana.PublicKey, bump uint8, err error) {
	// Seeds: [owner, token_program, mint]
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		associatedTokenProgramID,
	)
}
