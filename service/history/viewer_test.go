package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solanago.PrivateKey {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func newTestViewer(mock *solana.MockRPCClient) *Viewer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := solana.NewClient(mock, "test", solana.ConfirmPolicy{Interval: time.Millisecond, MaxAttempts: 1}, nil, logger)
	return NewViewer(client, DefaultLimit, "devnet", nil, logger)
}

// sendSOL lands a signed system transfer on the mock ledger.
func sendSOL(t *testing.T, mock *solana.MockRPCClient, from solanago.PrivateKey, to solanago.PublicKey, lamports uint64) solanago.Signature {
	t.Helper()
	bh, err := mock.GetLatestBlockhash(context.Background(), rpc.CommitmentConfirmed)
	require.NoError(t, err)

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{system.NewTransferInstruction(lamports, from.PublicKey(), to).Build()},
		bh.Value.Blockhash,
		solanago.TransactionPayer(from.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(from.PublicKey()) {
			return &from
		}
		return nil
	})
	require.NoError(t, err)

	sig, err := mock.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.NoError(t, err)
	return sig
}

func TestFetch_EmptyHistory(t *testing.T) {
	v := newTestViewer(solana.NewMockRPCClient())

	records, err := v.Fetch(context.Background(), newKey(t).PublicKey(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetch_TransfersNewestFirst(t *testing.T) {
	mock := solana.NewMockRPCClient()
	v := newTestViewer(mock)
	from := newKey(t)
	to := newKey(t).PublicKey()
	mock.SetBalance(from.PublicKey(), 10*solana.LamportsPerSOL)

	var sigs []solanago.Signature
	for i := 1; i <= 7; i++ {
		sigs = append(sigs, sendSOL(t, mock, from, to, uint64(i)*100_000_000))
	}

	records, err := v.Fetch(context.Background(), from.PublicKey(), 0)
	require.NoError(t, err)
	require.Len(t, records, DefaultLimit)

	for i, r := range records {
		assert.Equal(t, sigs[len(sigs)-1-i].String(), r.Signature)
	}

	newest := records[0]
	assert.Equal(t, "transfer", newest.Kind)
	assert.Equal(t, solana.ProgramSystem, newest.Program)
	assert.Equal(t, from.PublicKey().String(), newest.Source)
	assert.Equal(t, to.String(), newest.Destination)
	assert.Equal(t, uint64(700_000_000), newest.Amount)
	assert.Equal(t, "0.7 SOL", newest.AmountDisplay)
	assert.Equal(t, "https://explorer.solana.com/tx/"+newest.Signature+"?cluster=devnet", newest.ExplorerURL)
	assert.NotNil(t, newest.BlockTime)
}

func TestFetch_LimitIsCapped(t *testing.T) {
	mock := solana.NewMockRPCClient()
	v := newTestViewer(mock)
	from := newKey(t)
	mock.SetBalance(from.PublicKey(), 100*solana.LamportsPerSOL)
	for i := 0; i < MaxLimit+3; i++ {
		sendSOL(t, mock, from, newKey(t).PublicKey(), 1)
	}

	records, err := v.Fetch(context.Background(), from.PublicKey(), 1000)
	require.NoError(t, err)
	assert.Len(t, records, MaxLimit)
}

func TestFetch_SkipsNullTransactions(t *testing.T) {
	mock := solana.NewMockRPCClient()
	v := newTestViewer(mock)
	from := newKey(t)
	mock.SetBalance(from.PublicKey(), solana.LamportsPerSOL)

	kept := sendSOL(t, mock, from, newKey(t).PublicKey(), 5)
	mock.RecordTransaction(solanago.Signature{7}, nil, from.PublicKey())

	records, err := v.Fetch(context.Background(), from.PublicKey(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, kept.String(), records[0].Signature)
}

func TestFetch_NonTransferAndFailed(t *testing.T) {
	mock := solana.NewMockRPCClient()
	v := newTestViewer(mock)
	from := newKey(t)
	mock.SetBalance(from.PublicKey(), solana.LamportsPerSOL)
	mock.FailOnChain = true
	sendSOL(t, mock, from, newKey(t).PublicKey(), 5)

	// a transaction with no transfer instruction
	mint := newKey(t).PublicKey()
	mock.RecordTransaction(solanago.Signature{9}, &solanago.Transaction{
		Message: solanago.Message{
			AccountKeys: []solanago.PublicKey{from.PublicKey(), mint, solana.TokenProgramID},
			Instructions: []solanago.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{1, 0}, Data: []byte{7, 1, 0, 0, 0, 0, 0, 0, 0}},
			},
		},
	})

	records, err := v.Fetch(context.Background(), from.PublicKey(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "non-transfer", records[0].Kind)
	assert.Empty(t, records[0].AmountDisplay)

	assert.Equal(t, "transfer", records[1].Kind)
	assert.True(t, records[1].Failed)
	assert.Contains(t, records[1].Error, "InstructionError")
}

func TestFetch_Errors(t *testing.T) {
	t.Run("signature listing fails", func(t *testing.T) {
		mock := solana.NewMockRPCClient()
		mock.SetError("GetSignaturesForAddress", errors.New("429 too many requests"))

		_, err := newTestViewer(mock).Fetch(context.Background(), newKey(t).PublicKey(), 0)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindFetch))
	})

	t.Run("transaction fetch fails", func(t *testing.T) {
		mock := solana.NewMockRPCClient()
		from := newKey(t)
		mock.SetBalance(from.PublicKey(), solana.LamportsPerSOL)
		sendSOL(t, mock, from, newKey(t).PublicKey(), 5)
		mock.SetError("GetTransaction", errors.New("connection reset"))

		_, err := newTestViewer(mock).Fetch(context.Background(), from.PublicKey(), 0)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindFetch))
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1 SOL", FormatAmount(&solana.TransferDetail{Program: solana.ProgramSystem, Amount: solana.LamportsPerSOL}))
	assert.Equal(t, "1.5 tokens", FormatAmount(&solana.TransferDetail{Program: solana.ProgramSPLToken, Amount: 1_500_000}))
}

func TestExplorerURLs(t *testing.T) {
	assert.Equal(t, "https://explorer.solana.com/address/abc", ExplorerAddressURL("abc", ""))
	assert.Equal(t, "https://explorer.solana.com/tx/abc?cluster=testnet", ExplorerTxURL("abc", "testnet"))
}
