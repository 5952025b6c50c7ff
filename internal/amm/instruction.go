package amm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hamzarauf/swapdesk/internal/registry"
)

// BuildSwapInstruction constructs an SPL Token Swap style instruction
// against a constant-product pool.
func BuildSwapInstruction(
	pool *registry.PoolDescriptor,
	amountIn uint64,
	minAmountOut uint64,
	userAuthority solana.PublicKey,
	userTokenAccountIn solana.PublicKey,
	userTokenAccountOut solana.PublicKey,
	baseToQuote bool,
) (solana.Instruction, error) {

	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}

	poolSource := pool.BaseVault
	poolDest := pool.QuoteVault
	if !baseToQuote {
		poolSource = pool.QuoteVault
		poolDest = pool.BaseVault
	}

	// SPL Token Swap instruction account order:
	// 0. swap_state
	// 1. authority (PDA that controls vaults)
	// 2. user_transfer_authority (signer)
	// 3. user_source
	// 4. pool_source
	// 5. pool_destination
	// 6. user_destination
	// 7. token_program
	accounts := []*solana.AccountMeta{
		{PublicKey: pool.ID, IsWritable: true, IsSigner: false},
		{PublicKey: pool.Authority, IsWritable: false, IsSigner: false},
		{PublicKey: userAuthority, IsWritable: false, IsSigner: true},
		{PublicKey: userTokenAccountIn, IsWritable: true, IsSigner: false},
		{PublicKey: poolSource, IsWritable: true, IsSigner: false},
		{PublicKey: poolDest, IsWritable: true, IsSigner: false},
		{PublicKey: userTokenAccountOut, IsWritable: true, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
	}

	// Instruction data:
	// [0]    = discriminator (1 = Swap)
	// [1:9]  = amount_in (u64 LE)
	// [9:17] = minimum_amount_out (u64 LE)
	data := make([]byte, 17)
	data[0] = 1
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)

	return solana.NewInstruction(pool.ProgramID, accounts, data), nil
}

// SwapConstructionInput carries everything the venue needs to emit the
// instruction batches for one swap.
type SwapConstructionInput struct {
	Pool                *registry.PoolDescriptor
	AmountIn            uint64
	MinAmountOut        uint64
	BaseToQuote         bool
	UserAuthority       solana.PublicKey
	UserTokenAccountIn  solana.PublicKey
	UserTokenAccountOut solana.PublicKey
}

// BuildSwapBatches returns the inner instruction batches for a swap.
// A constant-product venue emits a single batch with no cleanup and no
// auxiliary signers; multi-leg venues may return several.
func BuildSwapBatches(in SwapConstructionInput) ([]InnerBatch, error) {
	ix, err := BuildSwapInstruction(
		in.Pool,
		in.AmountIn,
		in.MinAmountOut,
		in.UserAuthority,
		in.UserTokenAccountIn,
		in.UserTokenAccountOut,
		in.BaseToQuote,
	)
	if err != nil {
		return nil, err
	}

	return []InnerBatch{{Instructions: []solana.Instruction{ix}}}, nil
}
