package token

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/metrics"
	"github.com/brojonat/solsage/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Chain is the subset of *solana.Client the builder uses.
type Chain interface {
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	RentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	LatestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error)
	Send(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	AwaitConfirmation(ctx context.Context, sig solanago.Signature, lastValidBlockHeight uint64) (solana.Confirmation, error)
	AccountData(ctx context.Context, account solanago.PublicKey) ([]byte, error)
}

// Signer is the connected wallet. *wallet.Manager implements it.
type Signer interface {
	Address() (solanago.PublicKey, bool)
	SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error)
}

// Receipt identifies a confirmed transaction.
type Receipt struct {
	Signature solanago.Signature
	Slot      uint64
	Attempts  int
}

// TxSignature returns the base58 signature of the confirmed transaction.
func (r Receipt) TxSignature() string {
	return r.Signature.String()
}

// Builder assembles, signs, submits and confirms token program transactions.
type Builder struct {
	chain    Chain
	signer   Signer
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewBuilder creates a Builder and its associated-account resolver.
func NewBuilder(chain Chain, signer Signer, m *metrics.Metrics, logger *slog.Logger) *Builder {
	b := &Builder{
		chain:   chain,
		signer:  signer,
		logger:  logger,
		metrics: m,
	}
	b.resolver = newResolver(b)
	return b
}

// Resolver returns the builder's associated-account resolver.
func (b *Builder) Resolver() *Resolver {
	return b.resolver
}

// requireSession returns the connected address or a validation error.
func (b *Builder) requireSession() (solanago.PublicKey, error) {
	address, ok := b.signer.Address()
	if !ok {
		return solanago.PublicKey{}, apperr.Validation("connect a wallet first")
	}
	return address, nil
}

// finish records the outcome of a token operation.
func (b *Builder) finish(ctx context.Context, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = string(apperr.KindOf(err))
		b.logger.WarnContext(ctx, "token operation failed",
			"operation", operation,
			"kind", result,
			"error", err,
		)
	}
	if b.metrics != nil {
		b.metrics.RecordTokenOperation(operation, result, time.Since(start).Seconds())
	}
}

// submit runs the shared pipeline: blockhash, build, co-sign, wallet sign,
// send, confirm. Every failure is a submission error.
func (b *Builder) submit(ctx context.Context, payer solanago.PublicKey, instructions []solanago.Instruction, coSigners ...solanago.PrivateKey) (*Receipt, error) {
	blockhash, err := b.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not fetch a recent blockhash")
	}

	tx, err := solanago.NewTransaction(instructions, blockhash.Blockhash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not build the transaction")
	}

	if len(coSigners) > 0 {
		_, err := tx.PartialSign(func(key solanago.PublicKey) *solanago.PrivateKey {
			for i := range coSigners {
				if coSigners[i].PublicKey().Equals(key) {
					return &coSigners[i]
				}
			}
			return nil
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindSubmission, err, "could not co-sign the transaction")
		}
	}

	signed, err := b.signer.SignTransaction(ctx, tx)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindSubmission, err, "the wallet did not sign the transaction")
	}

	sig, err := b.chain.Send(ctx, signed)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "the transaction was rejected")
	}

	conf, err := b.chain.AwaitConfirmation(ctx, sig, blockhash.LastValidBlockHeight)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "confirmation of %s was interrupted", sig)
	}

	switch conf.Outcome {
	case solana.OutcomeConfirmed:
		return &Receipt{Signature: sig, Slot: conf.Slot, Attempts: conf.Attempts}, nil
	case solana.OutcomeOnChainError:
		return nil, apperr.New(apperr.KindSubmission, "transaction %s failed on chain: %s", sig, conf.Err)
	case solana.OutcomeExpired:
		return nil, apperr.New(apperr.KindSubmission, "transaction %s expired before it was confirmed", sig)
	default:
		return nil, apperr.New(apperr.KindSubmission, "transaction %s was not confirmed after %d checks", sig, conf.Attempts)
	}
}

// parseAddress validates a base58 public key from user input.
func parseAddress(field, input string) (solanago.PublicKey, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return solanago.PublicKey{}, apperr.Validation("%s is required", field)
	}
	key, err := solanago.PublicKeyFromBase58(input)
	if err != nil {
		return solanago.PublicKey{}, apperr.Validation("%s %q is not a valid address", field, input)
	}
	return key, nil
}

// ShortAddress abbreviates a base58 address for display.
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-6:])
}
