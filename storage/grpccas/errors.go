package grpccas

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rainlang.xyz/rainmeta/storage"
)

// mapRPC turns a status error from the server back into the storage sentinel
// the server started from.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		if st.Message() == storage.ErrInvalidHash.Error() {
			return storage.ErrInvalidHash
		}
		return err
	case codes.DataLoss:
		return storage.ErrHashMismatch
	case codes.AlreadyExists:
		return storage.ErrImmutable
	default:
		return err
	}
}
