// Package billingperiod computes the accounting window a quota check is
// evaluated against. Resolution is a pure function of the assignment and
// the given instant, so replaying a check always lands on the same window
// and therefore the same ledger partition.
package billingperiod

import (
	"fmt"
	"time"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
)

// CycleLength is the slice length for rolling (subscription-anchored) cycles.
const CycleLength = 30 * 24 * time.Hour

// Period is one accounting window. Key partitions the usage ledger.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Key   string    `json:"key"`
}

// Resolve returns the window containing now.
//
// Free-tier users (no assignment, or an assignment that is not effectively
// active) get calendar-month windows keyed "YYYY-MM". Paid and trial
// assignments get rolling 30-day cycles anchored at the assignment start,
// keyed by assignment ID, anchor instant, and cycle ordinal. An upgrade or
// payment capture advances CountersResetAt, which re-anchors the cycle and
// thereby opens a fresh ledger partition: that is the only way counters
// reset mid-month.
func Resolve(assignment *subscriptiondomain.PlanAssignment, now time.Time) Period {
	now = now.UTC()

	if assignment == nil || !assignment.IsEffectivelyActive(now) {
		return calendarMonth(now)
	}

	anchor := assignment.StartAt.UTC()
	if assignment.CountersResetAt != nil && assignment.CountersResetAt.After(anchor) {
		anchor = assignment.CountersResetAt.UTC()
	}
	if anchor.After(now) {
		// Clock skew between writer and reader; fall back to the anchor cycle.
		anchor = now
	}

	n := int64(now.Sub(anchor) / CycleLength)
	start := anchor.Add(time.Duration(n) * CycleLength)
	end := start.Add(CycleLength)
	if !assignment.ExpiresAt.IsZero() && end.After(assignment.ExpiresAt) {
		end = assignment.ExpiresAt.UTC()
	}

	// The anchor is part of the key: re-anchoring (upgrade, capture)
	// must open a fresh ledger partition even when n restarts at zero.
	return Period{
		Start: start,
		End:   end,
		Key:   fmt.Sprintf("cycle-%s-%d-%d", assignment.ID.String(), anchor.Unix(), n),
	}
}

func calendarMonth(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Period{
		Start: start,
		End:   end,
		Key:   fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month())),
	}
}
