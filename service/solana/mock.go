package solana

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Account data sizes for the SPL token program.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

// MockRPCClient is an in-memory ledger that implements RPCClient for testing.
// It applies the effects of the instructions this repository builds (system
// CreateAccount and Transfer, token InitializeMint, MintTo and Transfer, and
// associated account Create) so multi-step flows can be exercised end to end.
type MockRPCClient struct {
	mu sync.Mutex

	balances     map[solana.PublicKey]uint64
	accounts     map[solana.PublicKey]*mockAccount
	signatures   map[solana.PublicKey][]solana.Signature
	transactions map[solana.Signature]*mockTxn
	errors       map[string]error
	calls        map[string]int
	sent         []*solana.Transaction
	slot         uint64

	// BlockHeight is returned by GetBlockHeight; LastValidBlockHeight by GetLatestBlockhash.
	BlockHeight          uint64
	LastValidBlockHeight uint64
	// FailOnChain makes every sent transaction land with an execution error.
	FailOnChain bool
	// Pending keeps every status unknown so confirmation never settles.
	Pending bool
}

type mockAccount struct {
	owner solana.PublicKey
	data  []byte
}

type mockTxn struct {
	tx        *solana.Transaction
	slot      uint64
	blockTime time.Time
	err       interface{}
	null      bool
}

// NewMockRPCClient creates an empty ledger.
func NewMockRPCClient() *MockRPCClient {
	return &MockRPCClient{
		balances:             make(map[solana.PublicKey]uint64),
		accounts:             make(map[solana.PublicKey]*mockAccount),
		signatures:           make(map[solana.PublicKey][]solana.Signature),
		transactions:         make(map[solana.Signature]*mockTxn),
		errors:               make(map[string]error),
		calls:                make(map[string]int),
		slot:                 1000,
		BlockHeight:          100,
		LastValidBlockHeight: 250,
	}
}

// SetBalance sets the lamport balance of an address.
func (m *MockRPCClient) SetBalance(address solana.PublicKey, lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = lamports
}

// BalanceOf returns the lamport balance of an address.
func (m *MockRPCClient) BalanceOf(address solana.PublicKey) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address]
}

// SetError makes every call to method (e.g. "GetBalance") fail with err. A nil err clears it.
func (m *MockRPCClient) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Calls returns how many times method was called.
func (m *MockRPCClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockRPCClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Sent returns the transactions accepted by SendTransactionWithOpts, in order.
func (m *MockRPCClient) Sent() []*solana.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*solana.Transaction(nil), m.sent...)
}

// AccountExists reports whether an account has been created on the ledger.
func (m *MockRPCClient) AccountExists(address solana.PublicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[address]
	return ok
}

// PutTokenAccount stores an initialized token account.
func (m *MockRPCClient) PutTokenAccount(address, mint, owner solana.PublicKey, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[address] = &mockAccount{owner: TokenProgramID, data: EncodeTokenAccount(mint, owner, amount)}
}

// TokenBalance returns the amount held by a token account, or 0 if absent.
func (m *MockRPCClient) TokenBalance(address solana.PublicKey) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[address]
	if !ok || len(acct.data) < 72 {
		return 0
	}
	return binary.LittleEndian.Uint64(acct.data[64:72])
}

// RecordTransaction adds an already-landed transaction to the ledger history
// of every account it touches, without applying its effects. A nil tx records
// a signature the endpoint reports but returns as null.
func (m *MockRPCClient) RecordTransaction(sig solana.Signature, tx *solana.Transaction, addresses ...solana.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot++
	m.transactions[sig] = &mockTxn{tx: tx, slot: m.slot, blockTime: time.Unix(1700000000+int64(m.slot), 0), null: tx == nil}
	if tx != nil {
		addresses = append(addresses, tx.Message.AccountKeys...)
	}
	m.indexSignature(sig, addresses)
}

// EncodeTokenAccount lays out SPL token account data: mint, owner, amount,
// then zeroed optional fields (no delegate, initialized state set).
func EncodeTokenAccount(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = 1 // state: initialized
	return data
}

func (m *MockRPCClient) begin(method string) error {
	m.calls[method]++
	return m.errors[method]
}

func (m *MockRPCClient) rent(size uint64) uint64 {
	// (128 bytes of account overhead + data) * 3480 lamports/byte-year * 2 years
	return (128 + size) * 3480 * 2
}

func (m *MockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetBalance"); err != nil {
		return nil, err
	}
	return &rpc.GetBalanceResult{Value: m.balances[account]}, nil
}

func (m *MockRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetMinimumBalanceForRentExemption"); err != nil {
		return 0, err
	}
	return m.rent(dataSize), nil
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetLatestBlockhash"); err != nil {
		return nil, err
	}
	var hash solana.Hash
	binary.LittleEndian.PutUint64(hash[:8], m.slot)
	hash[31] = 1
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            hash,
			LastValidBlockHeight: m.LastValidBlockHeight,
		},
	}, nil
}

func (m *MockRPCClient) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetBlockHeight"); err != nil {
		return 0, err
	}
	return m.BlockHeight, nil
}

func (m *MockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("SendTransaction"); err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction is not signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}

	sig := tx.Signatures[0]
	if _, dup := m.transactions[sig]; dup {
		return solana.Signature{}, fmt.Errorf("transaction already processed")
	}

	var execErr interface{}
	if m.FailOnChain {
		execErr = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	} else if err := m.apply(tx); err != nil {
		// preflight simulation rejects the transaction
		return solana.Signature{}, fmt.Errorf("transaction simulation failed: %w", err)
	}

	m.sent = append(m.sent, tx)
	m.slot++
	m.transactions[sig] = &mockTxn{tx: tx, slot: m.slot, blockTime: time.Unix(1700000000+int64(m.slot), 0), err: execErr}
	m.indexSignature(sig, tx.Message.AccountKeys)
	return sig, nil
}

func (m *MockRPCClient) indexSignature(sig solana.Signature, addresses []solana.PublicKey) {
	seen := make(map[solana.PublicKey]bool)
	for _, addr := range addresses {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		m.signatures[addr] = append(m.signatures[addr], sig)
	}
}

// apply validates then applies instruction effects. Nothing changes on error.
func (m *MockRPCClient) apply(tx *solana.Transaction) error {
	keys := tx.Message.AccountKeys
	balances := make(map[solana.PublicKey]uint64)
	accounts := make(map[solana.PublicKey]*mockAccount)
	balanceOf := func(k solana.PublicKey) uint64 {
		if v, ok := balances[k]; ok {
			return v
		}
		return m.balances[k]
	}
	accountOf := func(k solana.PublicKey) (*mockAccount, bool) {
		if a, ok := accounts[k]; ok {
			return a, true
		}
		a, ok := m.accounts[k]
		if !ok {
			return nil, false
		}
		cp := &mockAccount{owner: a.owner, data: append([]byte(nil), a.data...)}
		return cp, true
	}
	key := func(ix solana.CompiledInstruction, i int) (solana.PublicKey, error) {
		if i >= len(ix.Accounts) || int(ix.Accounts[i]) >= len(keys) {
			return solana.PublicKey{}, fmt.Errorf("missing account %d", i)
		}
		return keys[ix.Accounts[i]], nil
	}

	for n, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return fmt.Errorf("instruction %d: bad program index", n)
		}
		program := keys[ix.ProgramIDIndex]
		data := []byte(ix.Data)

		switch {
		case program.Equals(SystemProgramID):
			if len(data) < 4 {
				return fmt.Errorf("instruction %d: short system instruction", n)
			}
			funder, err := key(ix, 0)
			if err != nil {
				return err
			}
			target, err := key(ix, 1)
			if err != nil {
				return err
			}
			switch binary.LittleEndian.Uint32(data[0:4]) {
			case SystemProgramCreateAccountInstruction:
				if len(data) < 52 {
					return fmt.Errorf("instruction %d: short create account", n)
				}
				lamports := binary.LittleEndian.Uint64(data[4:12])
				space := binary.LittleEndian.Uint64(data[12:20])
				var owner solana.PublicKey
				copy(owner[:], data[20:52])
				if _, exists := accountOf(target); exists {
					return fmt.Errorf("instruction %d: account %s already in use", n, target)
				}
				if balanceOf(funder) < lamports {
					return fmt.Errorf("instruction %d: insufficient lamports", n)
				}
				balances[funder] = balanceOf(funder) - lamports
				balances[target] = balanceOf(target) + lamports
				accounts[target] = &mockAccount{owner: owner, data: make([]byte, space)}
			case SystemProgramTransferInstruction:
				if len(data) < 12 {
					return fmt.Errorf("instruction %d: short transfer", n)
				}
				lamports := binary.LittleEndian.Uint64(data[4:12])
				if balanceOf(funder) < lamports {
					return fmt.Errorf("instruction %d: insufficient lamports", n)
				}
				balances[funder] = balanceOf(funder) - lamports
				balances[target] = balanceOf(target) + lamports
			}

		case program.Equals(AssociatedTokenProgramID):
			// accounts: [payer, associated account, wallet, mint, ...]
			payer, err := key(ix, 0)
			if err != nil {
				return err
			}
			ata, err := key(ix, 1)
			if err != nil {
				return err
			}
			owner, err := key(ix, 2)
			if err != nil {
				return err
			}
			mint, err := key(ix, 3)
			if err != nil {
				return err
			}
			if _, exists := accountOf(ata); exists {
				return fmt.Errorf("instruction %d: associated account %s already in use", n, ata)
			}
			rent := m.rent(TokenAccountSize)
			if balanceOf(payer) < rent {
				return fmt.Errorf("instruction %d: insufficient lamports", n)
			}
			balances[payer] = balanceOf(payer) - rent
			balances[ata] = balanceOf(ata) + rent
			accounts[ata] = &mockAccount{owner: TokenProgramID, data: EncodeTokenAccount(mint, owner, 0)}

		case program.Equals(TokenProgramID):
			if len(data) == 0 {
				return fmt.Errorf("instruction %d: empty token instruction", n)
			}
			switch data[0] {
			case TokenProgramInitializeMintInstruction:
				mint, err := key(ix, 0)
				if err != nil {
					return err
				}
				acct, ok := accountOf(mint)
				if !ok || len(acct.data) != MintAccountSize {
					return fmt.Errorf("instruction %d: mint account %s not allocated", n, mint)
				}
				if len(data) < 34 {
					return fmt.Errorf("instruction %d: short initialize mint", n)
				}
				binary.LittleEndian.PutUint32(acct.data[0:4], 1)
				copy(acct.data[4:36], data[2:34])
				acct.data[44] = data[1] // decimals
				acct.data[45] = 1       // initialized
				accounts[mint] = acct
			case TokenProgramMintToInstruction:
				if len(data) < 9 {
					return fmt.Errorf("instruction %d: short mint to", n)
				}
				mint, err := key(ix, 0)
				if err != nil {
					return err
				}
				dest, err := key(ix, 1)
				if err != nil {
					return err
				}
				if _, ok := accountOf(mint); !ok {
					return fmt.Errorf("instruction %d: mint %s does not exist", n, mint)
				}
				acct, ok := accountOf(dest)
				if !ok || len(acct.data) != TokenAccountSize {
					return fmt.Errorf("instruction %d: destination %s is not a token account", n, dest)
				}
				amount := binary.LittleEndian.Uint64(data[1:9])
				current := binary.LittleEndian.Uint64(acct.data[64:72])
				binary.LittleEndian.PutUint64(acct.data[64:72], current+amount)
				accounts[dest] = acct
			case TokenProgramTransferInstruction:
				if len(data) < 9 {
					return fmt.Errorf("instruction %d: short transfer", n)
				}
				src, err := key(ix, 0)
				if err != nil {
					return err
				}
				dst, err := key(ix, 1)
				if err != nil {
					return err
				}
				srcAcct, ok := accountOf(src)
				if !ok || len(srcAcct.data) != TokenAccountSize {
					return fmt.Errorf("instruction %d: source %s is not a token account", n, src)
				}
				dstAcct, ok := accountOf(dst)
				if !ok || len(dstAcct.data) != TokenAccountSize {
					return fmt.Errorf("instruction %d: destination %s is not a token account", n, dst)
				}
				amount := binary.LittleEndian.Uint64(data[1:9])
				have := binary.LittleEndian.Uint64(srcAcct.data[64:72])
				if have < amount {
					return fmt.Errorf("instruction %d: insufficient funds", n)
				}
				binary.LittleEndian.PutUint64(srcAcct.data[64:72], have-amount)
				accounts[src] = srcAcct
				if dst.Equals(src) {
					dstAcct = srcAcct
				}
				binary.LittleEndian.PutUint64(dstAcct.data[64:72], binary.LittleEndian.Uint64(dstAcct.data[64:72])+amount)
				accounts[dst] = dstAcct
			}
		}
	}

	for k, v := range balances {
		m.balances[k] = v
	}
	for k, v := range accounts {
		m.accounts[k] = v
	}
	return nil
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetSignatureStatuses"); err != nil {
		return nil, err
	}
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range signatures {
		txn, ok := m.transactions[sig]
		if !ok || m.Pending {
			out.Value = append(out.Value, nil)
			continue
		}
		out.Value = append(out.Value, &rpc.SignatureStatusesResult{
			Slot:               txn.slot,
			Err:                txn.err,
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
		})
	}
	return out, nil
}

func (m *MockRPCClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetAccountInfo"); err != nil {
		return nil, err
	}
	acct, ok := m.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: m.balances[account],
			Owner:    acct.owner,
			Data:     rpc.DataBytesOrJSONFromBytes(append([]byte(nil), acct.data...)),
		},
	}, nil
}

func (m *MockRPCClient) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetSignaturesForAddress"); err != nil {
		return nil, err
	}
	limit := 1000
	if opts != nil && opts.Limit != nil {
		limit = *opts.Limit
	}

	sigs := m.signatures[address]
	out := make([]*rpc.TransactionSignature, 0, min(limit, len(sigs)))
	for i := len(sigs) - 1; i >= 0 && len(out) < limit; i-- {
		txn := m.transactions[sigs[i]]
		bt := solana.UnixTimeSeconds(txn.blockTime.Unix())
		out = append(out, &rpc.TransactionSignature{
			Signature: sigs[i],
			Slot:      txn.slot,
			BlockTime: &bt,
			Err:       txn.err,
		})
	}
	return out, nil
}

func (m *MockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetTransaction"); err != nil {
		return nil, err
	}
	txn, ok := m.transactions[signature]
	if !ok || txn.null {
		return nil, rpc.ErrNotFound
	}

	envelope, err := transactionEnvelope(txn.tx)
	if err != nil {
		return nil, err
	}
	bt := solana.UnixTimeSeconds(txn.blockTime.Unix())
	return &rpc.GetTransactionResult{
		Slot:        txn.slot,
		BlockTime:   &bt,
		Transaction: envelope,
		Meta:        &rpc.TransactionMeta{Err: txn.err},
	}, nil
}

// transactionEnvelope wraps a transaction the way getTransaction returns it.
// TransactionResultEnvelope has unexported fields, so we go through JSON.
func transactionEnvelope(tx *solana.Transaction) (*rpc.TransactionResultEnvelope, error) {
	txJSON, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	envelopeJSON, err := json.Marshal(struct {
		Transaction json.RawMessage `json:"transaction"`
	}{Transaction: txJSON})
	if err != nil {
		return nil, err
	}

	var result rpc.GetTransactionResult
	if err := json.Unmarshal(envelopeJSON, &result); err != nil {
		return nil, err
	}
	return result.Transaction, nil
}
