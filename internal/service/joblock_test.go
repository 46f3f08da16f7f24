package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealershipLocker_SerializesPerDealership(t *testing.T) {
	locker := NewDealershipLocker(nil, 0)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, 5)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, 5)
	require.ErrorIs(t, err, ErrOrderInProgress)

	// Other dealerships never contend.
	release6, err := locker.Acquire(ctx, 6)
	require.NoError(t, err)
	release6()

	release()

	release, err = locker.Acquire(ctx, 5)
	require.NoError(t, err)
	release()
}

func TestDealershipLocker_ReleaseIsReusable(t *testing.T) {
	locker := NewDealershipLocker(nil, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		release, err := locker.Acquire(ctx, 5)
		require.NoError(t, err)
		release()
	}

	release, err := locker.Acquire(ctx, 5)
	assert.NoError(t, err)
	release()
}
