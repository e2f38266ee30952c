package consultation

import (
	"context"
	"errors"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// restartPollLocked cancels the running poll and starts a new one scoped to
// the current stage. The old goroutine is not awaited here because it may be
// waiting for o.mu.
func (o *Orchestrator) restartPollLocked() {
	o.stopPollLocked()
	if o.closed || o.summary.Completed {
		return
	}

	ctx, cancel := context.WithCancel(o.baseCtx)
	o.pollCancel = cancel

	o.pollWG.Add(1)
	go o.pollStageCompletion(ctx, o.progress.StageID)
}

func (o *Orchestrator) stopPollLocked() {
	if o.pollCancel != nil {
		o.pollCancel()
		o.pollCancel = nil
	}
}

func (o *Orchestrator) pollStageCompletion(ctx context.Context, stageID string) {
	defer o.pollWG.Done()

	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("stage_id", stageID)))
	ctxzap.Debug(ctx, "stage completion polling started", zap.Duration("interval", o.cfg.PollInterval))

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.checkStageCompletion(ctx, stageID)
	for {
		select {
		case <-ctx.Done():
			ctxzap.Debug(ctx, "stage completion polling stopped")
			return
		case <-ticker.C:
			o.checkStageCompletion(ctx, stageID)
		}
	}
}

// checkStageCompletion merges the advisory completion signal. Failures are
// logged and skipped.
func (o *Orchestrator) checkStageCompletion(ctx context.Context, stageID string) {
	sid := o.sessionIDCopy()
	if sid == nil {
		return
	}

	status, err := o.connector.CheckStageCompletion(ctx, *sid)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			ctxzap.Warn(ctx, "stage completion check failed", zap.Error(err))
		}
		return
	}
	if status == nil {
		return
	}

	var events []entity.ConsultationEvent

	o.mu.Lock()
	if ctx.Err() != nil || o.progress.StageID != stageID {
		o.mu.Unlock()
		return
	}

	for key := range status.ExtractedData {
		o.provided[key] = true
	}
	current := *status
	o.stageCompletion = &current

	if status.IsComplete && !o.progress.StageJustCompleted && !o.stageReadyNotified {
		o.stageReadyNotified = true
		events = append(events, o.noticeEvent(entity.NoticeLevelSuccess, msgStageRequirementMet))
	}
	o.mu.Unlock()

	ctxzap.Debug(ctx, "stage completion checked",
		zap.Bool("is_complete", status.IsComplete),
		zap.Float64("confidence", status.Confidence),
		zap.Int("extracted_keys", len(status.ExtractedData)),
	)

	o.publish(ctx, events)
}
