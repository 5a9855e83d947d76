package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
)

// FeeReserve is kept on top of mint rent to cover transaction fees (0.01 SOL).
const FeeReserve uint64 = 10_000_000

// MintMetadata is the create-token form as entered.
type MintMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

// ValidMint is MintMetadata after validation.
type ValidMint struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Validate trims and checks the metadata.
func (m MintMetadata) Validate() (ValidMint, error) {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return ValidMint{}, apperr.Validation("token name is required")
	}
	symbol := strings.TrimSpace(m.Symbol)
	if symbol == "" {
		return ValidMint{}, apperr.Validation("token symbol is required")
	}
	decimals, err := ParseDecimals(m.Decimals)
	if err != nil {
		return ValidMint{}, err
	}
	return ValidMint{Name: name, Symbol: symbol, Decimals: decimals}, nil
}

// CreateMintResult is a newly created mint.
type CreateMintResult struct {
	Mint      solanago.PublicKey
	Authority solanago.PublicKey
	Name      string
	Symbol    string
	Decimals  uint8
	Receipt
}

// Summary is the one-line success message.
func (r *CreateMintResult) Summary() string {
	return fmt.Sprintf("Created %s (%s) with mint %s", r.Name, r.Symbol, r.Mint)
}

// CreateMint creates and initializes a new SPL mint whose authority is the
// connected wallet. The name and symbol are display only; no metadata
// account is written.
func (b *Builder) CreateMint(ctx context.Context, meta MintMetadata) (result *CreateMintResult, err error) {
	start := time.Now()
	defer func() { b.finish(ctx, "create_mint", start, err) }()

	valid, err := meta.Validate()
	if err != nil {
		return nil, err
	}
	payer, err := b.requireSession()
	if err != nil {
		return nil, err
	}

	rent, err := b.chain.RentExemption(ctx, solana.MintAccountSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not fetch the rent-exempt minimum")
	}
	balance, err := b.chain.Balance(ctx, payer)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not fetch the wallet balance")
	}
	if need := rent + FeeReserve; balance < need {
		return nil, apperr.New(apperr.KindInsufficientFunds,
			"creating a token needs at least %s SOL, the wallet has %s SOL",
			FormatSOL(need), FormatSOL(balance))
	}

	mintKey, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not generate a mint key")
	}
	mint := mintKey.PublicKey()

	initMint, err := tokenprog.NewInitializeMintInstructionBuilder().
		SetDecimals(valid.Decimals).
		SetMintAuthority(payer).
		SetMintAccount(mint).
		SetSysVarRentPubkeyAccount(solanago.SysVarRentPubkey).
		ValidateAndBuild()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "could not build the initialize mint instruction")
	}

	instructions := []solanago.Instruction{
		system.NewCreateAccountInstruction(rent, solana.MintAccountSize, solana.TokenProgramID, payer, mint).Build(),
		initMint,
	}

	receipt, err := b.submit(ctx, payer, instructions, mintKey)
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "mint created",
		"mint", mint.String(),
		"symbol", valid.Symbol,
		"decimals", valid.Decimals,
		"signature", receipt.Signature.String(),
	)

	return &CreateMintResult{
		Mint:      mint,
		Authority: payer,
		Name:      valid.Name,
		Symbol:    valid.Symbol,
		Decimals:  valid.Decimals,
		Receipt:   *receipt,
	}, nil
}
