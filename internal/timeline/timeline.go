// Package timeline builds the day view: per-record items bucketed into
// timed and untimed lists for a reference day, plus a forward-looking
// week strip of per-day counts.
package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/attendhq/attend/internal/classify"
	"github.com/attendhq/attend/internal/identity"
	"github.com/attendhq/attend/internal/record"
	"github.com/attendhq/attend/internal/snapshot"
)

// Priority levels shown in the day view.
const (
	PriorityHigh   = "hoch"
	PriorityMedium = "mittel"
	PriorityLow    = "niedrig"
)

// Item is a record placed in time. At is set only when the record's
// authoritative timestamp falls on the reference day; items without At
// land in the untimed bucket.
type Item struct {
	ID         string
	Type       string
	Title      string
	Subtitle   string
	At         *time.Time
	EndAt      *time.Time
	ContactKey string
	SourceID   string
	SourceType string
	Status     classify.Status
	Priority   string
	Meta       map[string]string
}

// TodayResult splits the reference day's items into timed and untimed
// buckets. UnassignedCount reports items hidden by focus mode so the
// caller can surface that data was filtered, not lost.
type TodayResult struct {
	Timed           []Item
	Untimed         []Item
	UnassignedCount int
}

// DayStrip aggregates one day of the forward week view.
type DayStrip struct {
	Date    string // YYYY-MM-DD
	HasAny  bool
	Events  int
	Actions int
	Pending int
	Failed  int
}

// highPriorityTerms mark an action item as urgent when its title or
// subtitle mentions them.
var highPriorityTerms = []string{
	"rückruf", "callback", "zurückrufen",
	"termin", "appointment",
	"angebot", "offer",
	"dringend", "urgent", "eilig",
	"frist", "deadline",
	"eskalation",
}

// BuildToday builds the timeline for the calendar day of ref. Calls,
// spaces, and calendar events appear only when their timestamp is on
// that day. Tasks follow their due time, fall back to their snooze
// time, and are always included while open even without either; overdue
// open tasks surface as untimed regardless of due date.
func BuildToday(snap *snapshot.Snapshot, ref time.Time, focusKey string) TodayResult {
	openCounts := classify.OpenTaskCounts(snap.Tasks, ref)
	var items []Item

	for _, rec := range snap.Calls {
		if item, ok := buildActivityItem(rec, identity.SourceCall, ref, openCounts); ok {
			items = append(items, item)
		}
	}
	for _, rec := range snap.Spaces {
		if item, ok := buildActivityItem(rec, identity.SourceSpace, ref, openCounts); ok {
			items = append(items, item)
		}
	}
	for _, rec := range snap.Tasks {
		if item, ok := buildTaskItem(rec, ref); ok {
			items = append(items, item)
		}
	}
	for _, rec := range snap.Events {
		if item, ok := buildEventItem(rec, ref); ok {
			items = append(items, item)
		}
	}

	result := TodayResult{}
	if focusKey != "" {
		focused := items[:0]
		for _, item := range items {
			if item.ContactKey == focusKey {
				focused = append(focused, item)
			} else {
				result.UnassignedCount++
			}
		}
		items = focused
	}

	for _, item := range items {
		if item.At != nil {
			result.Timed = append(result.Timed, item)
		} else {
			result.Untimed = append(result.Untimed, item)
		}
	}
	sort.SliceStable(result.Timed, func(i, j int) bool {
		return result.Timed[i].At.Before(*result.Timed[j].At)
	})
	sortUntimed(result.Untimed)
	return result
}

func buildActivityItem(rec record.Record, src identity.SourceKind, ref time.Time, openCounts map[string]int) (Item, bool) {
	ts, ok := classify.Timestamp(rec, src)
	if !ok || !sameDay(ts, ref) {
		return Item{}, false
	}

	sourceID, _ := rec.FirstString("id", "callId", "spaceId")
	item := Item{
		ID:         classify.SourceKey(string(src), sourceID),
		Type:       string(src),
		SourceID:   sourceID,
		SourceType: string(src),
		At:         &ts,
		Meta:       map[string]string{},
	}
	if ref2, ok := identity.Resolve(rec, src); ok {
		item.ContactKey = ref2.Key
		item.Title = ref2.Label
	}
	if item.Title == "" {
		item.Title, _ = rec.String("title")
	}
	if item.Title == "" {
		if src == identity.SourceCall {
			item.Title = "Anruf"
		} else {
			item.Title = "Unterhaltung"
		}
	}
	if next, ok := classify.NextStep(rec, src); ok {
		item.Subtitle = next
		item.Meta["nextStep"] = next
	} else if outcome, ok := classify.Outcome(rec, src); ok {
		item.Subtitle = outcome
	}

	item.Status = classify.Classify(rec, src, openCounts[item.ID])
	item.Priority = derivePriority(item)
	return item, true
}

// buildTaskItem places a task on the day. Due time wins, snooze time is
// the fallback; a task with neither stays untimed while open. Overdue
// open tasks are always pulled into today as untimed.
func buildTaskItem(rec record.Record, ref time.Time) (Item, bool) {
	taskID, _ := rec.FirstString("id", "taskId")
	item := Item{
		ID:         classify.SourceKey(string(identity.SourceTask), taskID),
		Type:       string(identity.SourceTask),
		SourceID:   taskID,
		SourceType: string(identity.SourceTask),
		Meta:       map[string]string{},
	}
	item.Title, _ = rec.FirstString("title", "name")
	if item.Title == "" {
		item.Title = "Aufgabe"
	}
	if desc, ok := rec.FirstString("nextStep", "description"); ok {
		item.Subtitle = desc
	}
	if ref2, ok := identity.Resolve(rec, identity.SourceTask); ok {
		item.ContactKey = ref2.Key
	}
	item.Status = classify.Classify(rec, identity.SourceTask, 0)

	open := classify.IsTaskOpen(rec, ref)
	due, hasDue := rec.Timestamp("dueAt")
	snoozed, hasSnooze := rec.Timestamp("snoozedUntil")

	switch {
	case hasDue && sameDay(due, ref):
		item.At = &due
	case !hasDue && hasSnooze && sameDay(snoozed, ref):
		item.At = &snoozed
	case hasDue && due.Before(startOfDay(ref)) && item.Status != classify.StatusDone:
		// Overdue: untimed, status stays the task's own.
		item.Meta["overdue"] = "true"
	case !hasDue && !hasSnooze && open:
		// Untimed open task, always on today's plate.
	default:
		return Item{}, false
	}

	item.Priority = derivePriority(item)
	return item, true
}

func buildEventItem(rec record.Record, ref time.Time) (Item, bool) {
	start, ok := rec.Timestamp("start", "startTime", "startAt")
	if !ok || !sameDay(start, ref) {
		return Item{}, false
	}

	eventID, _ := rec.FirstString("id", "eventId")
	item := Item{
		ID:         "event-" + eventID,
		Type:       "event",
		SourceID:   eventID,
		SourceType: "event",
		At:         &start,
		Status:     classify.StatusInfo,
		Meta:       map[string]string{},
	}
	item.Title, _ = rec.FirstString("title", "summary")
	if item.Title == "" {
		item.Title = "Termin"
	}
	if end, ok := rec.Timestamp("end", "endTime", "endAt"); ok {
		item.EndAt = &end
	}
	if loc, ok := rec.String("location"); ok {
		item.Subtitle = loc
		item.Meta["location"] = loc
	}
	if attendees, ok := rec.Array("attendees"); ok && len(attendees) > 0 {
		if first, ok := record.AsMap(attendees[0]); ok {
			if email, ok := first.String("email"); ok {
				item.Meta["attendee"] = email
			}
		}
	}
	item.Priority = derivePriority(item)
	return item, true
}

// derivePriority is deterministic: failures are always high, actions
// are high when their text sounds urgent, everything else is low.
func derivePriority(item Item) string {
	switch item.Status {
	case classify.StatusFailed:
		return PriorityHigh
	case classify.StatusAction:
		text := strings.ToLower(item.Title + " " + item.Subtitle)
		for _, term := range highPriorityTerms {
			if strings.Contains(text, term) {
				return PriorityHigh
			}
		}
		return PriorityMedium
	}
	return PriorityLow
}

// statusRank orders the untimed bucket: problems first, done last.
var statusRank = map[classify.Status]int{
	classify.StatusFailed:  0,
	classify.StatusAction:  1,
	classify.StatusPending: 2,
	classify.StatusInfo:    3,
	classify.StatusDone:    4,
}

func sortUntimed(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := statusRank[items[i].Status], statusRank[items[j].Status]
		if ri != rj {
			return ri < rj
		}
		return items[i].ID < items[j].ID
	})
}

// BuildWeekStrip recomputes per-day counts for the 7 days starting at
// ref. It deliberately does not reuse BuildToday: counting directly is
// cheap and keeps the week view independent of the item builders.
func BuildWeekStrip(snap *snapshot.Snapshot, ref time.Time) []DayStrip {
	strip := make([]DayStrip, 0, 7)
	openCounts := classify.OpenTaskCounts(snap.Tasks, ref)

	for i := 0; i < 7; i++ {
		day := startOfDay(ref).AddDate(0, 0, i)
		ds := DayStrip{Date: day.Format("2006-01-02")}

		for _, rec := range snap.Events {
			if ts, ok := rec.Timestamp("start", "startTime", "startAt"); ok && sameDay(ts, day) {
				ds.Events++
			}
		}
		countActivity := func(rec record.Record, src identity.SourceKind) {
			ts, ok := classify.Timestamp(rec, src)
			if !ok || !sameDay(ts, day) {
				return
			}
			sourceID, _ := rec.FirstString("id", "callId", "spaceId")
			tally(&ds, classify.Classify(rec, src, openCounts[classify.SourceKey(string(src), sourceID)]))
		}
		for _, rec := range snap.Calls {
			countActivity(rec, identity.SourceCall)
		}
		for _, rec := range snap.Spaces {
			countActivity(rec, identity.SourceSpace)
		}
		for _, rec := range snap.Tasks {
			ts, ok := rec.Timestamp("dueAt", "snoozedUntil")
			if !ok || !sameDay(ts, day) {
				continue
			}
			tally(&ds, classify.Classify(rec, identity.SourceTask, 0))
		}

		ds.HasAny = ds.Events > 0 || ds.Actions > 0 || ds.Pending > 0 || ds.Failed > 0
		strip = append(strip, ds)
	}
	return strip
}

func tally(ds *DayStrip, status classify.Status) {
	switch status {
	case classify.StatusAction:
		ds.Actions++
	case classify.StatusPending:
		ds.Pending++
	case classify.StatusFailed:
		ds.Failed++
	}
}

func sameDay(t, ref time.Time) bool {
	t = t.In(ref.Location())
	return t.Year() == ref.Year() && t.YearDay() == ref.YearDay()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
