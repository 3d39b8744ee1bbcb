package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/internal/verifier"
)

// Server exposes a node over gRPC
type Server struct {
	node   *node.Node
	logger zerolog.Logger

	grpcServer *grpc.Server
}

// NewServer creates a new gRPC server
func NewServer(n *node.Node, logger zerolog.Logger) *Server {
	s := &Server{
		node:   n,
		logger: logger.With().Str("component", "grpc").Logger(),
	}

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.logRequests))
	RegisterVerifierServer(s.grpcServer, s)

	return s
}

// Start listens on address and serves until Stop is called
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(lis)
}

// Serve accepts connections on lis
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// Stop stops the gRPC server
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) logRequests(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	event := s.logger.Debug()
	if code := status.Code(err); code == codes.Internal || code == codes.Unknown {
		event = s.logger.Error().Err(err)
	}
	event.
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("elapsed", time.Since(start)).
		Msg("handled request")

	return resp, err
}

// HashBtcHeader runs the verifier's hashBtcHeader as a read-only call
func (s *Server) HashBtcHeader(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	digest, err := s.node.Call(verifier.MethodHashBtcHeader, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(digest), nil
}

// Call invokes any verifier method by name
func (s *Server) Call(_ context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	method, argument, err := callFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	output, err := s.node.Call(method, argument)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(output), nil
}

// SendTransaction admits a serialized, signed transaction
func (s *Server) SendTransaction(_ context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	transaction, err := tx.DeserializeTransaction(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed transaction: %v", err)
	}

	if err := s.node.SubmitTransaction(transaction); err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(transaction.IDHex()), nil
}

// GetTransactionReceipt returns the receipt once the transaction is sealed
func (s *Server) GetTransactionReceipt(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := crypto.DecodeHex(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad transaction id: %v", err)
	}

	receipt, err := s.node.Receipt(id)
	if err != nil {
		return nil, toStatus(err)
	}

	return ReceiptToStruct(receipt), nil
}

// GetNonce returns the next nonce for an address
func (s *Server) GetNonce(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	if err := crypto.ValidateAddress(req.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	nonce, err := s.node.Nonce(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.UInt64(nonce), nil
}

// GetChainInfo reports chain id, height and contract address
func (s *Server) GetChainInfo(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return ChainInfoToStruct(s.node.Info()), nil
}

// toStatus maps node and verifier errors onto gRPC codes. Reverts carry no
// message so callers see the same empty revert the contract produced.
func toStatus(err error) error {
	switch {
	case verifier.IsRevert(err):
		return status.Error(codes.Aborted, "")
	case errors.Is(err, verifier.ErrUnknownMethod):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, tx.ErrUnsigned),
		errors.Is(err, tx.ErrInvalidSignature),
		errors.Is(err, tx.ErrIDMismatch),
		errors.Is(err, node.ErrWrongChain),
		errors.Is(err, node.ErrNoContract),
		errors.Is(err, node.ErrIntrinsicGas):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, node.ErrNonceTooLow), errors.Is(err, node.ErrNonceTooHigh):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, node.ErrKnownTransaction):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, node.ErrPending), errors.Is(err, node.ErrUnknownTransaction):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
