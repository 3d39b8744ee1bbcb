package grpc

import (
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/tx"
)

// Struct field names shared by server and client
const (
	fieldMethod   = "method"
	fieldArgument = "argument"

	fieldTxID        = "transaction_hash"
	fieldBlockHash   = "block_hash"
	fieldBlockHeight = "block_number"
	fieldStatus      = "status"
	fieldOutput      = "output"
	fieldGasUsed     = "gas_used"
	fieldFrom        = "from"
	fieldTo          = "to"

	fieldChainID         = "chain_id"
	fieldHeight          = "height"
	fieldBestBlockHash   = "best_block_hash"
	fieldContractAddress = "contract_address"
	fieldPending         = "pending"
)

// CallRequest builds the request message for Call
func CallRequest(method, argument string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldMethod:   structpb.NewStringValue(method),
		fieldArgument: structpb.NewStringValue(argument),
	}}
}

func callFromStruct(s *structpb.Struct) (method, argument string, err error) {
	fields := s.GetFields()

	methodValue, ok := fields[fieldMethod]
	if !ok {
		return "", "", fmt.Errorf("missing %q", fieldMethod)
	}

	// argument may be omitted for an empty string
	return methodValue.GetStringValue(), fields[fieldArgument].GetStringValue(), nil
}

// ReceiptToStruct encodes a receipt for the wire. Numbers travel as
// decimal strings because Struct numbers are float64.
func ReceiptToStruct(r *tx.Receipt) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTxID:        structpb.NewStringValue(hex.EncodeToString(r.TxID)),
		fieldBlockHash:   structpb.NewStringValue(hex.EncodeToString(r.BlockHash)),
		fieldBlockHeight: structpb.NewStringValue(fmt.Sprint(r.BlockHeight)),
		fieldStatus:      structpb.NewStringValue(fmt.Sprint(r.Status)),
		fieldOutput:      structpb.NewStringValue(r.Output),
		fieldGasUsed:     structpb.NewStringValue(fmt.Sprint(r.GasUsed)),
		fieldFrom:        structpb.NewStringValue(r.From),
		fieldTo:          structpb.NewStringValue(r.To),
	}}
}

// ReceiptFromStruct decodes a receipt produced by ReceiptToStruct
func ReceiptFromStruct(s *structpb.Struct) (*tx.Receipt, error) {
	f := s.GetFields()
	r := &tx.Receipt{
		Output: f[fieldOutput].GetStringValue(),
		From:   f[fieldFrom].GetStringValue(),
		To:     f[fieldTo].GetStringValue(),
	}

	var err error
	if r.TxID, err = hex.DecodeString(f[fieldTxID].GetStringValue()); err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldTxID, err)
	}
	if r.BlockHash, err = hex.DecodeString(f[fieldBlockHash].GetStringValue()); err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldBlockHash, err)
	}

	numbers := []struct {
		name string
		dst  *uint64
	}{
		{fieldBlockHeight, &r.BlockHeight},
		{fieldStatus, &r.Status},
		{fieldGasUsed, &r.GasUsed},
	}
	for _, n := range numbers {
		if _, err := fmt.Sscan(f[n.name].GetStringValue(), n.dst); err != nil {
			return nil, fmt.Errorf("bad %s: %w", n.name, err)
		}
	}

	return r, nil
}

// ChainInfoToStruct encodes node.ChainInfo for the wire
func ChainInfoToStruct(info node.ChainInfo) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldChainID:         structpb.NewStringValue(fmt.Sprint(info.ChainID)),
		fieldHeight:          structpb.NewStringValue(fmt.Sprint(info.Height)),
		fieldBestBlockHash:   structpb.NewStringValue(hex.EncodeToString(info.BestBlockHash)),
		fieldContractAddress: structpb.NewStringValue(info.ContractAddress),
		fieldPending:         structpb.NewStringValue(fmt.Sprint(info.Pending)),
	}}
}

// ChainInfoFromStruct decodes a message produced by ChainInfoToStruct
func ChainInfoFromStruct(s *structpb.Struct) (node.ChainInfo, error) {
	f := s.GetFields()
	info := node.ChainInfo{
		ContractAddress: f[fieldContractAddress].GetStringValue(),
	}

	var err error
	if info.BestBlockHash, err = hex.DecodeString(f[fieldBestBlockHash].GetStringValue()); err != nil {
		return info, fmt.Errorf("bad %s: %w", fieldBestBlockHash, err)
	}
	if _, err := fmt.Sscan(f[fieldChainID].GetStringValue(), &info.ChainID); err != nil {
		return info, fmt.Errorf("bad %s: %w", fieldChainID, err)
	}
	if _, err := fmt.Sscan(f[fieldHeight].GetStringValue(), &info.Height); err != nil {
		return info, fmt.Errorf("bad %s: %w", fieldHeight, err)
	}
	if _, err := fmt.Sscan(f[fieldPending].GetStringValue(), &info.Pending); err != nil {
		return info, fmt.Errorf("bad %s: %w", fieldPending, err)
	}

	return info, nil
}
