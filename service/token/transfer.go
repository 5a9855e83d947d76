package token

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
)

// TransferRequest is the send-token form.
type TransferRequest struct {
	Mint      string `json:"mint"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TransferResult is a confirmed token transfer.
type TransferResult struct {
	Mint               solanago.PublicKey
	Recipient          solanago.PublicKey
	Source             solanago.PublicKey // token accounts
	Destination        solanago.PublicKey
	Amount             uint64
	DestinationCreated bool
	Receipt
}

// Summary is the one-line success message.
func (r *TransferResult) Summary() string {
	return fmt.Sprintf("Sent %s tokens of %s to %s",
		FormatUnits(r.Amount), ShortAddress(r.Mint.String()), ShortAddress(r.Recipient.String()))
}

// Transfer moves amount (UI units) of mint from the connected wallet to the
// recipient's associated token account, creating it if needed. The session
// pays for any account creation.
func (b *Builder) Transfer(ctx context.Context, req TransferRequest) (result *TransferResult, err error) {
	start := time.Now()
	defer func() { b.finish(ctx, "transfer", start, err) }()

	mint, err := parseAddress("mint address", req.Mint)
	if err != nil {
		return nil, err
	}
	units, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient address", req.Recipient)
	if err != nil {
		return nil, err
	}
	owner, err := b.requireSession()
	if err != nil {
		return nil, err
	}

	source, err := b.resolver.Resolve(ctx, mint, owner)
	if err != nil {
		return nil, err
	}
	dest, err := b.resolver.Resolve(ctx, mint, recipient)
	if err != nil {
		return nil, err
	}

	ix := tokenprog.NewTransferInstruction(units, source.Address, dest.Address, owner, nil).Build()
	receipt, err := b.submit(ctx, owner, []solanago.Instruction{ix})
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "tokens transferred",
		"mint", mint.String(),
		"recipient", recipient.String(),
		"amount", units,
		"signature", receipt.Signature.String(),
	)

	return &TransferResult{
		Mint:               mint,
		Recipient:          recipient,
		Source:             source.Address,
		Destination:        dest.Address,
		Amount:             units,
		DestinationCreated: dest.Created,
		Receipt:            *receipt,
	}, nil
}
