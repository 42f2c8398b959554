package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/modx-xyz/exchange/base/ctx"
)

func TestBoundedReturnsResult(t *testing.T) {
	req := require.New(t)

	err := Bounded(ctx.Background(), time.Second, func(c ctx.Ctx) error {
		return nil
	})
	req.NoError(err)

	wantErr := xerrors.New("boom")
	err = Bounded(ctx.Background(), time.Second, func(c ctx.Ctx) error {
		return wantErr
	})
	req.Equal(wantErr, err)
}

func TestBoundedTimesOut(t *testing.T) {
	req := require.New(t)

	err := Bounded(ctx.Background(), 10*time.Millisecond, func(c ctx.Ctx) error {
		<-c.Done()
		return nil
	})
	req.Equal(ErrBudgetExceeded, err)
}

func TestBoundedRecoversPanic(t *testing.T) {
	req := require.New(t)

	err := Bounded(ctx.Background(), time.Second, func(c ctx.Ctx) error {
		panic("hostile receiver")
	})
	req.Error(err)
	req.NotEqual(ErrBudgetExceeded, err)
}
