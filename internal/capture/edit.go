package capture

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/changes"
	customers "github.com/corvusHold/changenotify/internal/customers/domain"
	"github.com/corvusHold/changenotify/internal/metrics"
	notify "github.com/corvusHold/changenotify/internal/notify/domain"
)

type snapshotKey struct{}

type snapshotHolder struct {
	snap *customers.Snapshot
}

// EditTracker notifies by comparing the customer as it was when an edit
// began with the committed result.
type EditTracker struct {
	builder  *changes.Builder
	notifier notify.Notifier
	log      zerolog.Logger
}

func NewEditTracker(builder *changes.Builder, notifier notify.Notifier, log zerolog.Logger) *EditTracker {
	return &EditTracker{builder: builder, notifier: notifier, log: log}
}

// Begin stores a snapshot of c on the returned context. Unsaved customers
// (ID 0) are not tracked, so creating a record never notifies.
func (t *EditTracker) Begin(ctx context.Context, c customers.Customer) context.Context {
	h := &snapshotHolder{}
	if c.ID != 0 {
		snap := customers.TakeSnapshot(c)
		h.snap = &snap
	}
	return context.WithValue(ctx, snapshotKey{}, h)
}

// Complete must be called after the edit committed. It diffs the snapshot
// against current and notifies when something changed. The snapshot is
// released whatever happens. Cancelling ctx does not stop the notification.
func (t *EditTracker) Complete(ctx context.Context, current customers.Customer) {
	h, _ := ctx.Value(snapshotKey{}).(*snapshotHolder)
	if h == nil || h.snap == nil {
		return
	}
	before := *h.snap
	defer func() {
		h.snap = nil
		if r := recover(); r != nil {
			t.log.Error().Int64("customer_id", before.ID()).Interface("panic", r).Msg("edit notification panicked")
		}
	}()

	if before.ID() != current.ID {
		t.log.Warn().Int64("snapshot_id", before.ID()).Int64("customer_id", current.ID).Msg("snapshot belongs to another customer")
		return
	}
	diff := t.builder.Build(customers.ChangeSetBetween(before.Customer(), current))
	if diff.IsEmpty() {
		return
	}
	t.log.Info().
		Str("entity_type", customers.EntityType).
		Int64("customer_id", current.ID).
		Strs("fields", diff.Fields()).
		Msg("change detected")
	metrics.IncChangesDetected(StrategyEdit)
	t.notifier.Notify(context.WithoutCancel(ctx), &current, diff, notify.RequestFrom(ctx))
}

// Discard releases the snapshot without notifying, for edits that did not
// commit.
func (t *EditTracker) Discard(ctx context.Context) {
	if h, _ := ctx.Value(snapshotKey{}).(*snapshotHolder); h != nil {
		h.snap = nil
	}
}

// Tracking reports whether ctx carries a live snapshot.
func (t *EditTracker) Tracking(ctx context.Context) bool {
	h, _ := ctx.Value(snapshotKey{}).(*snapshotHolder)
	return h != nil && h.snap != nil
}
