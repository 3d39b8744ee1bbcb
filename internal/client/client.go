// Package client talks to a verifier node over gRPC.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yourusername/btcverifier/internal/crypto"
	rpc "github.com/yourusername/btcverifier/internal/grpc"
	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/tx"
)

// DefaultPollInterval is how often WaitForReceipt asks for a receipt
const DefaultPollInterval = 500 * time.Millisecond

// Client is a connection to a verifier node
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. A leading http:// or https:// is dropped so
// endpoint URLs can be used as-is.
func Dial(ctx context.Context, target string) (*Client, error) {
	target = strings.TrimPrefix(target, "http://")
	target = strings.TrimPrefix(target, "https://")
	target = strings.TrimSuffix(target, "/")

	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	return New(conn), nil
}

// New wraps an existing connection
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.conn.Invoke(ctx, rpc.FullMethod(method), in, out)
}

// HashBtcHeader returns the double SHA-256 of headerHex as computed by the
// node. Malformed input yields a *verifier.Revert with no data.
func (c *Client) HashBtcHeader(ctx context.Context, headerHex string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, rpc.MethodHashBtcHeader, wrapperspb.String(headerHex), out); err != nil {
		return "", fromStatus(err)
	}

	return out.GetValue(), nil
}

// Call invokes a verifier method without creating a transaction
func (c *Client) Call(ctx context.Context, method, argument string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, rpc.MethodCall, rpc.CallRequest(method, argument), out); err != nil {
		return "", fromStatus(err)
	}

	return out.GetValue(), nil
}

// ChainInfo fetches the node's chain id, height and contract address
func (c *Client) ChainInfo(ctx context.Context) (node.ChainInfo, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, rpc.MethodGetChainInfo, new(emptypb.Empty), out); err != nil {
		return node.ChainInfo{}, fromStatus(err)
	}

	return rpc.ChainInfoFromStruct(out)
}

// Nonce returns the nonce the next transaction from address must carry
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.invoke(ctx, rpc.MethodGetNonce, wrapperspb.String(address), out); err != nil {
		return 0, fromStatus(err)
	}

	return out.GetValue(), nil
}

// SendTransaction submits a signed transaction and returns its id
func (c *Client) SendTransaction(ctx context.Context, transaction *tx.Transaction) (string, error) {
	data, err := transaction.Serialize()
	if err != nil {
		return "", err
	}

	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, rpc.MethodSendTransaction, wrapperspb.Bytes(data), out); err != nil {
		return "", fromStatus(err)
	}

	return out.GetValue(), nil
}

// Send builds, signs and submits a call to the node's verifier contract
func (c *Client) Send(ctx context.Context, wallet *crypto.Wallet, method, argument string, gasLimit uint64) (*tx.Transaction, error) {
	info, err := c.ChainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain info: %w", err)
	}

	nonce, err := c.Nonce(ctx, wallet.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	call := tx.NewCall(info.ChainID, nonce, info.ContractAddress, method, argument, gasLimit)
	call.Sign(wallet)

	if _, err := c.SendTransaction(ctx, call); err != nil {
		return nil, err
	}

	return call, nil
}

// Receipt returns the receipt for id, or ErrNotFound while it is pending
func (c *Client) Receipt(ctx context.Context, id string) (*tx.Receipt, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, rpc.MethodGetTransactionReceipt, wrapperspb.String(id), out); err != nil {
		return nil, fromStatus(err)
	}

	return rpc.ReceiptFromStruct(out)
}

// WaitForReceipt polls until the transaction is included or ctx is done
func (c *Client) WaitForReceipt(ctx context.Context, id string, poll time.Duration) (*tx.Receipt, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := c.Receipt(ctx, id)
		if err == nil {
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("waiting for receipt %s: %w", id, ctx.Err())
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
