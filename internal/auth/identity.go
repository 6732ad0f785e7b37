package auth

import (
	"context"
	"errors"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

// ErrInvalidToken is returned for every verification failure so the
// client cannot tell which check rejected the credential.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified user attached to a connection at admission
// time. It is a value: set once, never mutated afterwards.
type Identity struct {
	ID       string
	Username string
	Nickname string
	Avatar   string
}

func (i Identity) Summary() model.UserSummary {
	return model.UserSummary{
		ID:       i.ID,
		Username: i.Username,
		Nickname: i.Nickname,
		Avatar:   i.Avatar,
	}
}

// Verifier turns a bearer credential into a verified Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
