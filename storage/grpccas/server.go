package grpccas

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// Server exposes a storage.CAS over the CAS gRPC service.
type Server struct {
	UnimplementedCASServer
	CAS storage.CAS

	// Log receives one entry per failed request. Nil disables logging.
	Log *zap.Logger
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	b := in.GetValue()
	if len(b) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty meta")
	}
	h, err := s.CAS.Put(ctx, b)
	if err != nil {
		return nil, s.mapErr("put", err)
	}
	if h != metahash.Sum(b) {
		return nil, status.Error(codes.DataLoss, storage.ErrHashMismatch.Error())
	}
	return wrapperspb.String(h.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	h, err := metahash.Parse(in.GetValue())
	if err != nil || !h.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidHash.Error())
	}
	b, err := s.CAS.Get(ctx, h)
	if err != nil {
		return nil, s.mapErr("get", err)
	}
	if err := storage.Verify(h, b); err != nil {
		return nil, status.Error(codes.DataLoss, err.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	h, err := metahash.Parse(in.GetValue())
	if err != nil || !h.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidHash.Error())
	}
	return wrapperspb.Bool(s.CAS.Has(ctx, h)), nil
}

func (s *Server) mapErr(op string, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, storage.ErrInvalidHash):
		code = codes.InvalidArgument
	case errors.Is(err, storage.ErrHashMismatch):
		code = codes.DataLoss
	case errors.Is(err, storage.ErrImmutable):
		code = codes.AlreadyExists
	default:
		code = codes.Internal
	}
	if s.Log != nil && code != codes.NotFound {
		s.Log.Warn("cas request failed", zap.String("op", op), zap.Stringer("code", code), zap.Error(err))
	}
	return status.Error(code, err.Error())
}
