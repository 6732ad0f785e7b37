package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/thornboo/jincheng-campus-api/internal/model"
	"github.com/thornboo/jincheng-campus-api/internal/store"
)

// Authorizer gates every session-scoped operation: join, send and
// read receipts all pass through Authorize, with no bypass.
type Authorizer struct {
	store store.Store
}

func NewAuthorizer(st store.Store) *Authorizer {
	return &Authorizer{store: st}
}

// Authorize returns the session only if userID is one of its two
// participants. Denial is scoped to the operation; it never costs the
// caller their connection.
func (a *Authorizer) Authorize(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	sess, err := a.store.FindSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("authorize session %s: %w", sessionID, err)
	}
	if !sess.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return sess, nil
}
