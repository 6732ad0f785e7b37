package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	req := require.New(t)
	reg := NewMemory()
	ctx := context.Background()

	n, err := reg.CountOnline(ctx)
	req.NoError(err)
	req.Zero(n)

	req.NoError(reg.Announce(ctx, "s1", "alice"))
	req.NoError(reg.Announce(ctx, "s2", "alice"))
	req.NoError(reg.Announce(ctx, "s3", "bob"))

	n, err = reg.CountOnline(ctx)
	req.NoError(err)
	req.EqualValues(3, n)

	online, err := reg.IsOnline(ctx, "alice")
	req.NoError(err)
	req.True(online)

	// alice stays online while one of her sockets remains
	req.NoError(reg.Retire(ctx, "s1", "alice"))
	online, err = reg.IsOnline(ctx, "alice")
	req.NoError(err)
	req.True(online)

	req.NoError(reg.Retire(ctx, "s2", "alice"))
	online, err = reg.IsOnline(ctx, "alice")
	req.NoError(err)
	req.False(online)

	n, err = reg.CountOnline(ctx)
	req.NoError(err)
	req.EqualValues(1, n)
}
