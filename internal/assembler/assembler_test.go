package assembler

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

type staticBlockhash struct{ bh wallet.Blockhash }

func (s staticBlockhash) GetLatestBlockhash(ctx context.Context, commitment ...string) (wallet.Blockhash, error) {
	return s.bh, nil
}

func testBlockhashSource(t *testing.T) staticBlockhash {
	t.Helper()
	h, err := solana.HashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")
	require.NoError(t, err)
	return staticBlockhash{bh: wallet.Blockhash{Hash: h, LastValidBlockHeight: 12345}}
}

func noopIx(program solana.PublicKey, marker byte, signers ...solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{}
	for _, s := range signers {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: s, IsSigner: true, IsWritable: false})
	}
	return solana.NewInstruction(program, accounts, []byte{marker})
}

func TestFlattenKeepsCleanupLast(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	batches := []amm.InnerBatch{
		{
			Instructions: []solana.Instruction{noopIx(program, 1), noopIx(program, 2)},
			Cleanup:      noopIx(program, 100),
		},
		{
			Instructions: []solana.Instruction{noopIx(program, 3)},
			Cleanup:      noopIx(program, 101),
		},
	}

	ixs, signers := Flatten(batches)
	require.Len(t, ixs, 5)
	assert.Empty(t, signers)

	markers := make([]byte, 0, len(ixs))
	for _, ix := range ixs {
		data, err := ix.Data()
		require.NoError(t, err)
		markers = append(markers, data[0])
	}
	// Main instructions in batch order, then cleanups, never interleaved.
	assert.Equal(t, []byte{1, 2, 3, 100, 101}, markers)
}

func TestFlattenCollectsSigners(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	k1, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	k2, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	batches := []amm.InnerBatch{
		{Instructions: []solana.Instruction{noopIx(program, 1)}, Signers: []solana.PrivateKey{k1}},
		{Instructions: []solana.Instruction{noopIx(program, 2)}, Signers: []solana.PrivateKey{k2}},
	}

	_, signers := Flatten(batches)
	require.Len(t, signers, 2)
	assert.Equal(t, k1.PublicKey(), signers[0].PublicKey())
	assert.Equal(t, k2.PublicKey(), signers[1].PublicKey())
}

func TestBuildLegacySignedByFeePayer(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	feePayer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	a := New(feePayer, testBlockhashSource(t), nil)

	batches := []amm.InnerBatch{
		{Instructions: []solana.Instruction{noopIx(program, 1)}},
	}

	out, err := a.Build(context.Background(), batches, false)
	require.NoError(t, err)
	assert.Equal(t, KindLegacy, out.Kind)
	assert.Equal(t, uint64(12345), out.LastValidBlockHeight)
	assert.Equal(t, 0, out.AuxSignerCount)

	// Fee payer is the first required signer and its signature verifies.
	require.NotEmpty(t, out.Tx.Signatures)
	assert.Equal(t, feePayer.PublicKey(), out.Tx.Message.AccountKeys[0])
	assert.NoError(t, out.Tx.VerifySignatures())
}

func TestBuildWithAuxiliarySigners(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	feePayer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	aux, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	a := New(feePayer, testBlockhashSource(t), nil)

	batches := []amm.InnerBatch{
		{
			Instructions: []solana.Instruction{noopIx(program, 1, aux.PublicKey())},
			Signers:      []solana.PrivateKey{aux},
		},
	}

	out, err := a.Build(context.Background(), batches, false)
	require.NoError(t, err)
	assert.Equal(t, 1, out.AuxSignerCount)

	// Both the fee payer and the auxiliary signer produced signatures.
	assert.Len(t, out.Tx.Signatures, 2)
	assert.NoError(t, out.Tx.VerifySignatures())
}

func TestBuildVersioned(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	feePayer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	a := New(feePayer, testBlockhashSource(t), nil)

	batches := []amm.InnerBatch{
		{Instructions: []solana.Instruction{noopIx(program, 1)}},
	}

	out, err := a.Build(context.Background(), batches, true)
	require.NoError(t, err)
	assert.Equal(t, KindVersioned, out.Kind)
	assert.Equal(t, solana.MessageVersionV0, out.Tx.Message.GetVersion())

	// A versioned transaction still serializes.
	_, err = out.Tx.MarshalBinary()
	assert.NoError(t, err)
}

func TestBuildRejectsEmptyBatches(t *testing.T) {
	feePayer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	a := New(feePayer, testBlockhashSource(t), nil)

	_, err = a.Build(context.Background(), nil, false)
	assert.Error(t, err)

	_, err = a.Build(context.Background(), []amm.InnerBatch{{}}, false)
	assert.Error(t, err)
}
