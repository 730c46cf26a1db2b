// Package triage projects calls and spaces into a flat, filterable
// inbox of classified items. Tasks are not inbox items themselves; they
// only contribute open-task counts via their source link.
package triage

import (
	"sort"
	"strings"
	"time"

	"github.com/attendhq/attend/internal/classify"
	"github.com/attendhq/attend/internal/identity"
	"github.com/attendhq/attend/internal/record"
	"github.com/attendhq/attend/internal/snapshot"
)

// Tab is one of the four non-done statuses used as an inbox filter
// dimension.
type Tab string

const (
	TabAction  Tab = "action"
	TabPending Tab = "pending"
	TabFailed  Tab = "failed"
	TabInfo    Tab = "info"
)

// Tabs lists all inbox tabs in display order.
var Tabs = []Tab{TabAction, TabPending, TabFailed, TabInfo}

// SourceFilter restricts the inbox to one record origin.
type SourceFilter string

const (
	SourceAll    SourceFilter = "all"
	SourceCalls  SourceFilter = "calls"
	SourceSpaces SourceFilter = "space"
)

// InboxItem is the per-record inbox projection. It is recomputed from a
// fresh snapshot on every build and never mutated in place.
type InboxItem struct {
	ID            string
	SourceType    string
	SourceID      string
	Title         string
	Subtitle      string
	CreatedAt     *time.Time
	Status        classify.Status
	NextStep      string
	Outcome       string
	Error         string
	TaskOpenCount int
	ContactKey    string
	Raw           record.Record
}

// BuildInboxItems projects all calls and spaces into inbox items.
func BuildInboxItems(snap *snapshot.Snapshot, now time.Time) []InboxItem {
	openCounts := classify.OpenTaskCounts(snap.Tasks, now)

	items := make([]InboxItem, 0, len(snap.Calls)+len(snap.Spaces))
	for _, rec := range snap.Calls {
		items = append(items, buildItem(rec, identity.SourceCall, openCounts))
	}
	for _, rec := range snap.Spaces {
		items = append(items, buildItem(rec, identity.SourceSpace, openCounts))
	}
	return items
}

func buildItem(rec record.Record, src identity.SourceKind, openCounts map[string]int) InboxItem {
	sourceID, _ := rec.FirstString("id", "callId", "spaceId")
	item := InboxItem{
		ID:         classify.SourceKey(string(src), sourceID),
		SourceType: string(src),
		SourceID:   sourceID,
		Raw:        rec,
	}

	if ts, ok := classify.Timestamp(rec, src); ok {
		item.CreatedAt = &ts
	}
	if ref, ok := identity.Resolve(rec, src); ok {
		item.ContactKey = ref.Key
		item.Title = ref.Label
	}
	if item.Title == "" {
		if title, ok := rec.String("title"); ok {
			item.Title = title
		} else if src == identity.SourceCall {
			item.Title = "Anruf"
		} else {
			item.Title = "Unterhaltung"
		}
	}

	if outcome, ok := classify.Outcome(rec, src); ok {
		item.Outcome = outcome
		item.Subtitle = outcome
	}
	if next, ok := classify.NextStep(rec, src); ok {
		item.NextStep = next
	}
	if msg, ok := rec.FirstString("error", "errorMessage", "lastError"); ok {
		item.Error = msg
		if item.Subtitle == "" {
			item.Subtitle = msg
		}
	}

	item.TaskOpenCount = openCounts[item.ID]
	item.Status = classify.Classify(rec, src, item.TaskOpenCount)
	return item
}

// FilterOptions controls the inbox filtering pipeline. Steps apply in
// fixed order: source, tab, dismissed (info tab only), focus, search.
type FilterOptions struct {
	Source    SourceFilter
	Tab       Tab
	Dismissed map[string]bool
	FocusKey  string
	Search    string
}

// FilterResult carries the surviving items plus the count of items the
// focus filter hid because they had no resolvable contact key. The
// invariant len(Items)+UnfocusedCount equals the pre-focus item count,
// so the UI can report hidden data instead of silently dropping it.
type FilterResult struct {
	Items          []InboxItem
	UnfocusedCount int
}

// Filter applies the inbox filtering pipeline.
func Filter(items []InboxItem, opts FilterOptions) FilterResult {
	kept := make([]InboxItem, 0, len(items))
	for _, item := range items {
		if !matchesSource(item, opts.Source) {
			continue
		}
		if opts.Tab != "" && item.Status != classify.Status(opts.Tab) {
			continue
		}
		if opts.Tab == TabInfo && opts.Dismissed[item.ID] {
			continue
		}
		kept = append(kept, item)
	}

	result := FilterResult{}
	if opts.FocusKey != "" {
		focused := kept[:0]
		for _, item := range kept {
			if item.ContactKey == opts.FocusKey {
				focused = append(focused, item)
			} else {
				result.UnfocusedCount++
			}
		}
		kept = focused
	}

	if search := strings.ToLower(strings.TrimSpace(opts.Search)); search != "" {
		matched := kept[:0]
		for _, item := range kept {
			if containsFold(item.Title, search) ||
				containsFold(item.Subtitle, search) ||
				containsFold(item.NextStep, search) {
				matched = append(matched, item)
			}
		}
		kept = matched
	}

	result.Items = kept
	return result
}

func matchesSource(item InboxItem, src SourceFilter) bool {
	switch src {
	case "", SourceAll:
		return true
	case SourceCalls:
		return item.SourceType == string(identity.SourceCall)
	case SourceSpaces:
		return item.SourceType == string(identity.SourceSpace)
	}
	return true
}

func containsFold(s, lowered string) bool {
	return strings.Contains(strings.ToLower(s), lowered)
}

// Sort orders items in place per tab semantics: the action tab floats
// items with open linked tasks to the top, the pending tab surfaces the
// oldest (stuck) items first, failed and info show newest first.
func Sort(items []InboxItem, tab Tab) {
	switch tab {
	case TabAction:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TaskOpenCount > 0 && items[j].TaskOpenCount == 0
		})
	case TabPending:
		sort.SliceStable(items, func(i, j int) bool {
			return olderFirst(items[i].CreatedAt, items[j].CreatedAt)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return newerFirst(items[i].CreatedAt, items[j].CreatedAt)
		})
	}
}

func olderFirst(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return a.Before(*b)
}

func newerFirst(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return a.After(*b)
}

// CountsByTab computes all four tab badges regardless of which tab is
// open. The dismissed set only affects the info count, matching the
// info tab's own filter.
func CountsByTab(items []InboxItem, dismissed map[string]bool) map[Tab]int {
	counts := make(map[Tab]int, len(Tabs))
	for _, tab := range Tabs {
		counts[tab] = 0
	}
	for _, item := range items {
		switch item.Status {
		case classify.StatusAction:
			counts[TabAction]++
		case classify.StatusPending:
			counts[TabPending]++
		case classify.StatusFailed:
			counts[TabFailed]++
		case classify.StatusInfo:
			if !dismissed[item.ID] {
				counts[TabInfo]++
			}
		}
	}
	return counts
}
