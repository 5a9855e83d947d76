package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/solana"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
)

// TokenAccount is an SPL token account owned by Owner for Mint.
type TokenAccount struct {
	Address solanago.PublicKey
	Mint    solanago.PublicKey
	Owner   solanago.PublicKey
	Amount  uint64
	Created bool // created by this Resolve call
}

// Resolver finds or creates associated token accounts.
type Resolver struct {
	b *Builder

	mu    sync.Mutex
	locks map[solanago.PublicKey]*sync.Mutex
}

func newResolver(b *Builder) *Resolver {
	return &Resolver{b: b, locks: make(map[solanago.PublicKey]*sync.Mutex)}
}

// lock serializes resolution per associated address so concurrent callers
// create an account at most once.
func (r *Resolver) lock(address solanago.PublicKey) func() {
	r.mu.Lock()
	l, ok := r.locks[address]
	if !ok {
		l = &sync.Mutex{}
		r.locks[address] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Resolve returns owner's associated token account for mint. A missing
// account is created in its own transaction, paid for by the connected wallet.
func (r *Resolver) Resolve(ctx context.Context, mint, owner solanago.PublicKey) (*TokenAccount, error) {
	address, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAccountResolution, err, "could not derive the token account for %s", owner)
	}

	unlock := r.lock(address)
	defer unlock()

	account, err := r.fetch(ctx, address)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, solana.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindAccountResolution, err, "could not read token account %s", address)
	}

	payer, err := r.b.requireSession()
	if err != nil {
		return nil, err
	}

	r.b.logger.InfoContext(ctx, "creating associated token account",
		"address", address.String(),
		"owner", owner.String(),
		"mint", mint.String(),
	)

	ix := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build()
	if _, err := r.b.submit(ctx, payer, []solanago.Instruction{ix}); err != nil {
		r.recordCreated("error")
		return nil, apperr.Wrap(apperr.KindAccountResolution, err, "could not create token account for %s", owner)
	}
	r.recordCreated("success")

	account, err = r.fetch(ctx, address)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAccountResolution, err, "token account %s missing after creation", address)
	}
	account.Created = true
	return account, nil
}

func (r *Resolver) recordCreated(status string) {
	if r.b.metrics != nil {
		r.b.metrics.RecordTokenAccountCreated(status)
	}
}

// fetch reads and decodes a token account. Missing accounts return solana.ErrNotFound.
func (r *Resolver) fetch(ctx context.Context, address solanago.PublicKey) (*TokenAccount, error) {
	data, err := r.b.chain.AccountData(ctx, address)
	if err != nil {
		return nil, err
	}

	var acc tokenprog.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return nil, fmt.Errorf("account %s is not a token account: %w", address, err)
	}

	return &TokenAccount{
		Address: address,
		Mint:    acc.Mint,
		Owner:   acc.Owner,
		Amount:  acc.Amount,
	}, nil
}
