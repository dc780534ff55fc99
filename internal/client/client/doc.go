// Package client is the client side of the remote boundary.
//
// # Overview
//
// The package provides:
//  1. The Gateway and ImageGateway contracts consumed by the sync engine:
//     fetch by key, fetch the per-year index, fetch changes since a cursor,
//     conditional push and soft delete, plus blob transfer for images.
//  2. A gRPC implementation (GRPCClient) that manages a connection, injects
//     the access token via an interceptor, and maps gRPC status codes to
//     common.SyncError.
//  3. MemoryGateway, an in-process remote with the same conditional-write
//     semantics, used by tests and by the CLI when no server is configured.
//
// # Error Handling
//
// Every failure is a *common.SyncError whose Kind is one of common.ErrOffline,
// common.ErrConflict, common.ErrRemoteRejected or common.ErrSyncUnknown.
//
// All operations accept context.Context and honor cancellation.
package client
