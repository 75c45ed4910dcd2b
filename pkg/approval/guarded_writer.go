package approval

import (
	"context"

	"github.com/liye-os/kernel/pkg/executor"
)

// GuardedWriter wraps the real ads writer so every mutating call is checked
// against the plan's guarantee first. With the guarantee active the inner
// writer is never reached, which is what makes write_calls_attempted == 0
// equivalent to "no real write happened".
type GuardedWriter struct {
	inner   executor.AdsWriter
	manager *Manager
	planID  string
}

// NewGuardedWriter binds a writer to one plan.
func NewGuardedWriter(inner executor.AdsWriter, manager *Manager, planID string) *GuardedWriter {
	return &GuardedWriter{inner: inner, manager: manager, planID: planID}
}

func (w *GuardedWriter) PauseKeyword(ctx context.Context, scope, keywordID string) error {
	if err := w.manager.RecordWriteAttempt(ctx, w.planID, "pause_keyword"); err != nil {
		return err
	}
	return w.inner.PauseKeyword(ctx, scope, keywordID)
}

func (w *GuardedWriter) AddNegativeKeyword(ctx context.Context, scope, term string) error {
	if err := w.manager.RecordWriteAttempt(ctx, w.planID, "add_negative_keyword"); err != nil {
		return err
	}
	return w.inner.AddNegativeKeyword(ctx, scope, term)
}

func (w *GuardedWriter) SetBid(ctx context.Context, scope, keywordID string, bid float64) error {
	if err := w.manager.RecordWriteAttempt(ctx, w.planID, "set_bid"); err != nil {
		return err
	}
	return w.inner.SetBid(ctx, scope, keywordID, bid)
}
