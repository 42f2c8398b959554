// Package call runs side-effecting collaborator calls under a hard time
// budget, absorbing panics. Payout delivery and royalty lookups go through
// it so a slow or hostile collaborator cannot stall or crash a settlement.
package call

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"golang.org/x/xerrors"
)

var (
	ErrBudgetExceeded = xerrors.New("call: budget exceeded")
)

// Bounded runs fn with a deadline of budget. If fn has not returned by
// then, Bounded returns ErrBudgetExceeded and leaves fn to finish in the
// background; a panic inside fn is returned as an error.
func Bounded(c ctx.Ctx, budget time.Duration, fn func(c ctx.Ctx) error) error {
	callCtx, cancel := ctx.WithTimeout(c, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				callCtx.WithField("err", r).Error("call: panic recovered")
				done <- xerrors.Errorf("call: panic: %v", r)
			}
		}()
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		// fn may have finished in the same instant the deadline fired;
		// prefer its result so a completed call is not reported as lost.
		select {
		case err := <-done:
			return err
		default:
			return ErrBudgetExceeded
		}
	}
}
