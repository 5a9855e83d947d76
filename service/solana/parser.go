package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.TokenProgramID

	// AssociatedTokenProgramID derives and creates associated token accounts
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// System Program instruction types
const (
	SystemProgramCreateAccountInstruction = uint32(0)
	SystemProgramTransferInstruction      = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramInitializeMintInstruction = uint8(0)
	TokenProgramTransferInstruction       = uint8(3)
	TokenProgramMintToInstruction         = uint8(7)
)

// parseTransactionFromResult converts a getTransaction result into our domain model.
// Only top-level instructions are inspected; the first System Transfer or SPL
// Token Transfer wins. TransferChecked and inner instructions are not transfers here.
func parseTransactionFromResult(sig solana.Signature, result *rpc.GetTransactionResult) (*ConfirmedTransaction, error) {
	if result == nil {
		return nil, fmt.Errorf("nil transaction result for %s", sig)
	}

	txn := &ConfirmedTransaction{
		Signature: sig.String(),
		Slot:      result.Slot,
	}

	if result.BlockTime != nil {
		bt := result.BlockTime.Time().UTC()
		txn.BlockTime = &bt
	}

	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("%v", result.Meta.Err)
		txn.Err = &errMsg
	}

	if result.Transaction == nil {
		return txn, nil
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	txn.Transfer = firstTransfer(tx.Message)
	return txn, nil
}

// firstTransfer returns the first top-level transfer instruction in the message, or nil.
func firstTransfer(msg solana.Message) *TransferDetail {
	accountKeys := msg.AccountKeys
	for _, instruction := range msg.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(SystemProgramID):
			if detail, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				return detail
			}
		case programID.Equals(TokenProgramID):
			if detail, err := parseTokenTransfer(instruction, accountKeys); err == nil {
				return detail
			}
		}
	}
	return nil
}

// parseSystemTransfer extracts a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*TransferDetail, error) {
	// [0..4]  = instruction type (u32, 2 = Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// accounts: [from, to]
	from, to, err := accountPair(instruction, accountKeys)
	if err != nil {
		return nil, err
	}

	return &TransferDetail{
		Program:     ProgramSystem,
		Source:      from.String(),
		Destination: to.String(),
		Amount:      binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}

// parseTokenTransfer extracts an SPL Token Transfer instruction.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*TransferDetail, error) {
	// [0]    = instruction type (u8, 3 = Transfer)
	// [1..9] = amount (u64)
	if len(instruction.Data) == 0 {
		return nil, fmt.Errorf("empty instruction data")
	}
	if instruction.Data[0] != TokenProgramTransferInstruction {
		return nil, fmt.Errorf("not a transfer instruction: type %d", instruction.Data[0])
	}
	if len(instruction.Data) < 9 {
		return nil, fmt.Errorf("transfer instruction data too short")
	}

	// accounts: [source token account, destination token account, authority]
	from, to, err := accountPair(instruction, accountKeys)
	if err != nil {
		return nil, err
	}

	return &TransferDetail{
		Program:     ProgramSPLToken,
		Source:      from.String(),
		Destination: to.String(),
		Amount:      binary.LittleEndian.Uint64(instruction.Data[1:9]),
	}, nil
}

func accountPair(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (solana.PublicKey, solana.PublicKey, error) {
	if len(instruction.Accounts) < 2 {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("transfer missing accounts")
	}
	fromIdx, toIdx := int(instruction.Accounts[0]), int(instruction.Accounts[1])
	if fromIdx >= len(accountKeys) || toIdx >= len(accountKeys) {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("account index out of bounds")
	}
	return accountKeys[fromIdx], accountKeys[toIdx], nil
}
