// Package presence tracks which sockets are currently connected.
// The registry is advisory, derived state: it is rebuilt from scratch
// as connections re-authenticate, and nothing depends on it for
// correctness.
package presence

import "context"

type Registry interface {
	// Announce records a newly admitted socket for userID.
	Announce(ctx context.Context, socketID, userID string) error

	// Touch refreshes the socket's liveness; called on the keepalive
	// ping cadence so crashed nodes age out of the cluster view.
	Touch(ctx context.Context, socketID, userID string) error

	// Retire removes the socket on disconnect.
	Retire(ctx context.Context, socketID, userID string) error

	// CountOnline counts connected sockets across the whole cluster.
	CountOnline(ctx context.Context) (int64, error)

	// IsOnline reports whether the user has at least one socket
	// connected anywhere in the cluster.
	IsOnline(ctx context.Context, userID string) (bool, error)
}
