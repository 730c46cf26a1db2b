// Package insight rolls all raw activity up into one record per
// resolved contact and ranks contacts by how urgently they need
// attention.
package insight

import (
	"sort"
	"time"

	"github.com/attendhq/attend/internal/classify"
	"github.com/attendhq/attend/internal/identity"
	"github.com/attendhq/attend/internal/record"
	"github.com/attendhq/attend/internal/snapshot"
)

// SourceRefs keeps the raw records that contributed to an insight,
// grouped by origin, for jump-to-source lookups.
type SourceRefs struct {
	Calls  []record.Record
	Spaces []record.Record
	Tasks  []record.Record
}

// ContactInsight is the per-contact rollup across all sources.
type ContactInsight struct {
	Ref              identity.ContactRef
	LastActivityAt   *time.Time
	LastActivityType identity.SourceKind
	OpenTasks        int
	PendingCount     int
	FailedCount      int
	ActionCount      int
	LastOutcome      string
	LastNextStep     string
	Sources          SourceRefs
}

// builder tracks per-field winning timestamps during accumulation so
// that only strictly newer records overwrite. Exact ties keep the
// first-seen value; iteration order is fixed to calls, then spaces,
// then tasks, which makes the tie-break deterministic.
type builder struct {
	insight    *ContactInsight
	activityAt time.Time
	outcomeAt  time.Time
	nextStepAt time.Time
}

// Build aggregates the snapshot into one insight per resolved contact.
// Records with no resolvable identity are skipped here; they remain
// visible in the inbox and timeline views.
func Build(snap *snapshot.Snapshot, now time.Time) []*ContactInsight {
	openCounts := classify.OpenTaskCounts(snap.Tasks, now)

	byKey := make(map[string]*builder)
	var order []string

	get := func(ref identity.ContactRef) *builder {
		b, ok := byKey[ref.Key]
		if !ok {
			b = &builder{insight: &ContactInsight{Ref: ref}}
			byKey[ref.Key] = b
			order = append(order, ref.Key)
		}
		return b
	}

	ingest := func(rec record.Record, src identity.SourceKind) {
		ref, ok := identity.Resolve(rec, src)
		if !ok {
			return
		}
		b := get(ref)
		in := b.insight

		switch src {
		case identity.SourceCall:
			in.Sources.Calls = append(in.Sources.Calls, rec)
		case identity.SourceSpace:
			in.Sources.Spaces = append(in.Sources.Spaces, rec)
		case identity.SourceTask:
			in.Sources.Tasks = append(in.Sources.Tasks, rec)
		}

		ts, hasTS := classify.Timestamp(rec, src)
		if hasTS && ts.After(b.activityAt) {
			b.activityAt = ts
			t := ts
			in.LastActivityAt = &t
			in.LastActivityType = src
		}
		if outcome, ok := classify.Outcome(rec, src); ok {
			if hasTS && ts.After(b.outcomeAt) || in.LastOutcome == "" {
				if hasTS {
					b.outcomeAt = ts
				}
				in.LastOutcome = outcome
			}
		}
		if next, ok := classify.NextStep(rec, src); ok {
			if hasTS && ts.After(b.nextStepAt) || in.LastNextStep == "" {
				if hasTS {
					b.nextStepAt = ts
				}
				in.LastNextStep = next
			}
		}

		openLinked := 0
		if src != identity.SourceTask {
			srcID, _ := rec.FirstString("id", "callId", "spaceId")
			openLinked = openCounts[classify.SourceKey(string(src), srcID)]
		}
		switch classify.Classify(rec, src, openLinked) {
		case classify.StatusFailed:
			in.FailedCount++
		case classify.StatusPending:
			in.PendingCount++
		case classify.StatusAction:
			in.ActionCount++
		}

		if src == identity.SourceTask && classify.IsTaskOpen(rec, now) {
			in.OpenTasks++
		}
	}

	for _, rec := range snap.Calls {
		ingest(rec, identity.SourceCall)
	}
	for _, rec := range snap.Spaces {
		ingest(rec, identity.SourceSpace)
	}
	for _, rec := range snap.Tasks {
		ingest(rec, identity.SourceTask)
	}

	insights := make([]*ContactInsight, 0, len(order))
	for _, key := range order {
		insights = append(insights, byKey[key].insight)
	}
	return insights
}

// Rank sorts insights in place: problems and open obligations outrank
// mere recency. Descending by failedCount, openTasks, actionCount,
// pendingCount, then lastActivityAt; contacts with no timestamp sort
// after all timestamped contacts. The sort is stable.
func Rank(insights []*ContactInsight) {
	sort.SliceStable(insights, func(i, j int) bool {
		a, b := insights[i], insights[j]
		if a.FailedCount != b.FailedCount {
			return a.FailedCount > b.FailedCount
		}
		if a.OpenTasks != b.OpenTasks {
			return a.OpenTasks > b.OpenTasks
		}
		if a.ActionCount != b.ActionCount {
			return a.ActionCount > b.ActionCount
		}
		if a.PendingCount != b.PendingCount {
			return a.PendingCount > b.PendingCount
		}
		switch {
		case a.LastActivityAt == nil && b.LastActivityAt == nil:
			return false
		case a.LastActivityAt == nil:
			return false
		case b.LastActivityAt == nil:
			return true
		}
		return a.LastActivityAt.After(*b.LastActivityAt)
	})
}

// BestSource returns the most recent originating call or space for an
// insight, for jump-to-source actions. Ties keep the earlier candidate
// in calls-then-spaces order.
func BestSource(in *ContactInsight) (record.Record, identity.SourceKind, bool) {
	var best record.Record
	var bestKind identity.SourceKind
	var bestAt time.Time

	consider := func(rec record.Record, src identity.SourceKind) {
		ts, ok := classify.Timestamp(rec, src)
		if !ok {
			if best == nil {
				best = rec
				bestKind = src
			}
			return
		}
		if best == nil || ts.After(bestAt) {
			best = rec
			bestKind = src
			bestAt = ts
		}
	}

	for _, rec := range in.Sources.Calls {
		consider(rec, identity.SourceCall)
	}
	for _, rec := range in.Sources.Spaces {
		consider(rec, identity.SourceSpace)
	}
	return best, bestKind, best != nil
}
