package mission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/notify"
	"github.com/questlog/mechanicum/internal/types"
)

// PlannedNotification is one reminder the notification subsystem should
// hold for an active mission.
type PlannedNotification struct {
	MissionID      string            `json:"mission_id"`
	NotificationID int32             `json:"notification_id"`
	Title          string            `json:"title"`
	Kind           types.MissionKind `json:"kind"`
}

// NotificationPlan reconciles the notification subsystem with the
// mission records: Schedule lists reminders that should exist, Cancel
// lists identifiers held by records that no longer warrant one.
type NotificationPlan struct {
	Schedule  []PlannedNotification `json:"schedule"`
	Cancel    []int32               `json:"cancel"`
	PlannedAt time.Time             `json:"planned_at"`
}

// ComputeNotificationPlan derives the notification plan from a
// snapshot. Active unfailed missions get reminders; completed, deleted,
// and failed records get their identifiers cancelled. The snapshot is
// not modified.
func ComputeNotificationPlan(snap *types.Snapshot) *NotificationPlan {
	plan := &NotificationPlan{PlannedAt: time.Now()}
	for _, m := range snap.Active {
		if m.HasFailed {
			plan.Cancel = append(plan.Cancel, m.NotificationID)
			continue
		}
		plan.Schedule = append(plan.Schedule, PlannedNotification{
			MissionID:      m.ID,
			NotificationID: m.NotificationID,
			Title:          m.Title,
			Kind:           m.Kind,
		})
	}
	for _, m := range snap.Completed {
		plan.Cancel = append(plan.Cancel, m.NotificationID)
	}
	for _, m := range snap.Deleted {
		plan.Cancel = append(plan.Cancel, m.NotificationID)
	}
	return plan
}

// ApplyNotificationPlan pushes a plan to the scheduler. Individual
// scheduling failures are logged and counted but do not stop delivery
// of the rest of the plan.
func (c *Coordinator) ApplyNotificationPlan(ctx context.Context, plan *NotificationPlan, sched notify.Scheduler) (scheduled, cancelled int, err error) {
	if sched == nil {
		return 0, 0, fmt.Errorf("scheduler is required")
	}

	var failures int
	for _, p := range plan.Schedule {
		body := fmt.Sprintf("%s mission reminder", p.Kind)
		if serr := sched.Schedule(ctx, p.NotificationID, p.Title, body); serr != nil {
			failures++
			c.logger.Warn("failed to schedule reminder",
				zap.String("mission", p.MissionID),
				zap.Int32("notification", p.NotificationID),
				zap.Error(serr))
			continue
		}
		scheduled++
	}
	for _, id := range plan.Cancel {
		if serr := sched.Cancel(ctx, id); serr != nil {
			failures++
			c.logger.Warn("failed to cancel reminder",
				zap.Int32("notification", id),
				zap.Error(serr))
			continue
		}
		cancelled++
	}

	if failures > 0 {
		return scheduled, cancelled, fmt.Errorf("%d of %d notification actions failed", failures, len(plan.Schedule)+len(plan.Cancel))
	}
	return scheduled, cancelled, nil
}
