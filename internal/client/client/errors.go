package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/netx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError converts a gRPC failure into a *common.SyncError.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewSyncError(common.ErrOffline, op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return common.NewSyncError(common.ErrSyncUnknown, op, err)
	}
	switch st.Code() {
	case codes.Aborted:
		return common.NewSyncError(common.ErrConflict, op, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.NewSyncError(common.ErrOffline, op, err)
	case codes.InvalidArgument, codes.NotFound, codes.Unauthenticated, codes.PermissionDenied:
		return common.NewSyncError(common.ErrRemoteRejected, op, err)
	default:
		return common.NewSyncError(common.ErrSyncUnknown, op, err)
	}
}

// mapBlobError converts a presigned transfer failure. Transport errors
// and 5xx count as offline, 4xx as rejected.
func mapBlobError(op string, err error) error {
	if err == nil {
		return nil
	}
	var he *netx.HTTPError
	if errors.As(err, &he) {
		if he.StatusCode >= http.StatusInternalServerError {
			return common.NewSyncError(common.ErrOffline, op, err)
		}
		return common.NewSyncError(common.ErrRemoteRejected, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return common.NewSyncError(common.ErrSyncUnknown, op, err)
	}
	return common.NewSyncError(common.ErrOffline, op, err)
}
