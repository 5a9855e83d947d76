package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
)

// ErrNotAuthorized is returned when signing is requested from a provider
// that has not been connected.
var ErrNotAuthorized = errors.New("wallet provider is not connected")

// Provider is the wallet capability: it holds the key, authorizes a session,
// and signs transactions. Implementations must be safe for concurrent use.
type Provider interface {
	Connect(ctx context.Context) (solanago.PublicKey, error)
	Disconnect(ctx context.Context) error
	PublicKey() solanago.PublicKey
	SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error)
}

// KeypairProvider signs with a Solana CLI keygen file. The file is read on
// Connect, so a missing or unreadable file means no wallet is available.
type KeypairProvider struct {
	path string

	mu  sync.RWMutex
	key *solanago.PrivateKey
}

// NewKeypairProvider creates a provider for the keygen JSON file at path.
func NewKeypairProvider(path string) *KeypairProvider {
	return &KeypairProvider{path: path}
}

func (p *KeypairProvider) Connect(ctx context.Context) (solanago.PublicKey, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(p.path)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("no wallet available at %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.key = &key
	p.mu.Unlock()
	return key.PublicKey(), nil
}

func (p *KeypairProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.key = nil
	p.mu.Unlock()
	return nil
}

func (p *KeypairProvider) PublicKey() solanago.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.key == nil {
		return solanago.PublicKey{}
	}
	return p.key.PublicKey()
}

func (p *KeypairProvider) SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key == nil {
		return nil, ErrNotAuthorized
	}
	return partialSign(tx, *key)
}

// StaticProvider holds an in-memory key. Connect always succeeds.
type StaticProvider struct {
	key solanago.PrivateKey

	mu        sync.RWMutex
	connected bool
}

// NewStaticProvider wraps an existing private key.
func NewStaticProvider(key solanago.PrivateKey) *StaticProvider {
	return &StaticProvider{key: key}
}

// NewStaticProviderFromBase58 parses a base58 encoded private key.
func NewStaticProviderFromBase58(encoded string) (*StaticProvider, error) {
	key, err := solanago.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewStaticProvider(key), nil
}

func (p *StaticProvider) Connect(ctx context.Context) (solanago.PublicKey, error) {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return p.key.PublicKey(), nil
}

func (p *StaticProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *StaticProvider) PublicKey() solanago.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected {
		return solanago.PublicKey{}
	}
	return p.key.PublicKey()
}

func (p *StaticProvider) SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if !connected {
		return nil, ErrNotAuthorized
	}
	return partialSign(tx, p.key)
}

// partialSign adds key's signature, keeping signatures already present
// (e.g. a freshly generated mint account).
func partialSign(tx *solanago.Transaction, key solanago.PrivateKey) (*solanago.Transaction, error) {
	pub := key.PublicKey()
	if !tx.IsSigner(pub) {
		return nil, fmt.Errorf("wallet %s is not a signer of this transaction", pub)
	}
	_, err := tx.PartialSign(func(k solanago.PublicKey) *solanago.PrivateKey {
		if k.Equals(pub) {
			return &key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}
