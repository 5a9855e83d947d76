package token

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
)

// MintSupplyResult is a confirmed MintTo.
type MintSupplyResult struct {
	Mint        solanago.PublicKey
	Destination solanago.PublicKey // the wallet's associated token account
	Amount      uint64             // base units
	Created     bool               // destination account was created first
	Receipt
}

// Summary is the one-line success message.
func (r *MintSupplyResult) Summary() string {
	return fmt.Sprintf("Minted %s tokens to %s from mint %s",
		FormatUnits(r.Amount), ShortAddress(r.Destination.String()), ShortAddress(r.Mint.String()))
}

// MintSupply mints amount (UI units) of mint into the connected wallet's
// associated token account, creating the account if needed.
func (b *Builder) MintSupply(ctx context.Context, mintAddress, amount string) (result *MintSupplyResult, err error) {
	start := time.Now()
	defer func() { b.finish(ctx, "mint_supply", start, err) }()

	mint, err := parseAddress("mint address", mintAddress)
	if err != nil {
		return nil, err
	}
	units, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	authority, err := b.requireSession()
	if err != nil {
		return nil, err
	}

	dest, err := b.resolver.Resolve(ctx, mint, authority)
	if err != nil {
		return nil, err
	}

	ix := tokenprog.NewMintToInstruction(units, mint, dest.Address, authority, nil).Build()
	receipt, err := b.submit(ctx, authority, []solanago.Instruction{ix})
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "supply minted",
		"mint", mint.String(),
		"destination", dest.Address.String(),
		"amount", units,
		"signature", receipt.Signature.String(),
	)

	return &MintSupplyResult{
		Mint:        mint,
		Destination: dest.Address,
		Amount:      units,
		Created:     dest.Created,
		Receipt:     *receipt,
	}, nil
}
