package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

// tracker keeps the ledger entry of a task this CLI started up to date.
// Ledger failures are logged and never fail the command; a nil tracker does
// nothing.
type tracker struct {
	ledger *ledger.Ledger
	entry  *ledger.Entry
	logger zerolog.Logger
}

// trackTask records a newly started server task in the ledger.
func (o *globalOptions) trackTask(ctx context.Context, serverURL, kind, threadID, description string) *tracker {
	if threadID == "" {
		return nil
	}
	l, err := o.openLedger()
	if err != nil {
		o.logger.Warn().Err(err).Msg("task ledger unavailable")
		return nil
	}

	entry := &ledger.Entry{
		ServerURL:   serverURL,
		ThreadID:    threadID,
		Kind:        kind,
		Description: description,
		Status:      "started",
		Running:     true,
	}
	if err := l.Record(ctx, entry); err != nil {
		o.logger.Warn().Err(err).Str("threadId", threadID).Msg("failed to record task")
		l.Close()
		return nil
	}
	return &tracker{ledger: l, entry: entry, logger: o.logger}
}

// findTask returns a tracker for a task already in the ledger, or nil.
func (o *globalOptions) findTask(ctx context.Context, serverURL, threadID string) *tracker {
	l, err := o.openLedger()
	if err != nil {
		o.logger.Debug().Err(err).Msg("task ledger unavailable")
		return nil
	}
	entry, err := l.FindByThread(ctx, serverURL, threadID)
	if err != nil {
		l.Close()
		return nil
	}
	return &tracker{ledger: l, entry: entry, logger: o.logger}
}

func (t *tracker) update(ctx context.Context, status *labbcat.TaskStatus) {
	if t == nil || status == nil {
		return
	}
	percent := status.PercentComplete
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	if err := t.ledger.UpdateStatus(ctx, t.entry.ID, status.Status, percent, status.Running); err != nil {
		t.logger.Warn().Err(err).Str("threadId", t.entry.ThreadID).Msg("failed to update task ledger")
		return
	}
	t.entry.Status = status.Status
	t.entry.PercentComplete = percent
	t.entry.Running = status.Running
}

// released marks the task as no longer held by the server.
func (t *tracker) released(ctx context.Context) {
	t.finished(ctx, "released")
}

// cancelled marks the task as stopped at the client's request, keeping the
// progress it had reached.
func (t *tracker) cancelled(ctx context.Context) {
	t.finished(ctx, "cancelled")
}

func (t *tracker) finished(ctx context.Context, status string) {
	if t == nil {
		return
	}
	if err := t.ledger.UpdateStatus(ctx, t.entry.ID, status, t.entry.PercentComplete, false); err != nil {
		t.logger.Warn().Err(err).Str("threadId", t.entry.ThreadID).Msg("failed to update task ledger")
		return
	}
	t.entry.Status = status
	t.entry.Running = false
}

func (t *tracker) close() {
	if t != nil {
		t.ledger.Close()
	}
}

// progressLogger logs task progress at debug level and keeps the ledger
// current.
func (o *globalOptions) progressLogger(ctx context.Context, t *tracker) func(*labbcat.TaskStatus) {
	return func(status *labbcat.TaskStatus) {
		o.logger.Debug().
			Str("threadId", status.ThreadID).
			Int("percent", status.PercentComplete).
			Str("status", status.Status).
			Msg("task progress")
		t.update(ctx, status)
	}
}
