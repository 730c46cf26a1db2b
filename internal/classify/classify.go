// Package classify maps raw activity records to a fixed set of
// mutually exclusive statuses and extracts next-step/outcome text from
// the nested summary shapes the upstream sources produce.
package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/attendhq/attend/internal/identity"
	"github.com/attendhq/attend/internal/record"
)

// Status is the total classification result for a record.
type Status string

const (
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
	StatusDone    Status = "done" // tasks only
	StatusAction  Status = "action"
	StatusInfo    Status = "info"
)

// Minimum lengths below which extracted text is treated as a
// placeholder rather than content.
const (
	minNextStepLen = 5
	minOutcomeLen  = 3
)

var statusFields = []string{"status", "summaryStatus", "state"}

// Classify returns exactly one status for any record. Precedence:
// failed > pending > done (tasks only) > action > info.
func Classify(rec record.Record, src identity.SourceKind, openLinkedTasks int) Status {
	status, _ := rec.FirstString(statusFields...)
	status = strings.ToLower(status)

	switch status {
	case "failed", "error":
		return StatusFailed
	}
	if msg, ok := rec.FirstString("error", "errorMessage", "lastError"); ok && msg != "" {
		return StatusFailed
	}

	switch status {
	case "pending", "processing", "in_progress":
		return StatusPending
	}

	if src == identity.SourceTask {
		if done, ok := rec.Bool("done"); ok && done {
			return StatusDone
		}
		switch status {
		case "done", "completed":
			return StatusDone
		}
	}

	if _, ok := NextStep(rec, src); ok {
		return StatusAction
	}
	if openLinkedTasks > 0 {
		return StatusAction
	}

	return StatusInfo
}

// Summary shapes vary by source and have drifted over time; each list
// is probed in order and the first qualifying candidate wins. Candidates
// are never merged.
var nextStepPaths = map[identity.SourceKind][][]string{
	identity.SourceCall: {
		{"summary", "nextStep"},
		{"summary", "full", "nextStep"},
		{"summaryFull", "nextStep"},
		{"metadata", "summary", "nextStep"},
		{"nextStep"},
	},
	identity.SourceSpace: {
		{"metadata", "spaceSummary", "nextStep"},
		{"summaryFull", "nextStep"},
		{"summary", "nextStep"},
		{"nextStep"},
	},
	identity.SourceTask: {
		{"nextStep"},
		{"description"},
	},
}

var outcomePaths = map[identity.SourceKind][][]string{
	identity.SourceCall: {
		{"summary", "outcome"},
		{"summary", "full", "outcome"},
		{"summaryFull", "outcome"},
		{"metadata", "summary", "outcome"},
		{"outcome"},
	},
	identity.SourceSpace: {
		{"metadata", "spaceSummary", "outcome"},
		{"summaryFull", "outcome"},
		{"summary", "outcome"},
		{"outcome"},
	},
	identity.SourceTask: {
		{"outcome"},
	},
}

// NextStep extracts the next-step text for a record, if any field path
// yields qualifying content. Nothing is fabricated on absence.
func NextStep(rec record.Record, src identity.SourceKind) (string, bool) {
	return extract(rec, nextStepPaths[src], minNextStepLen)
}

// Outcome extracts the outcome text for a record, if present.
func Outcome(rec record.Record, src identity.SourceKind) (string, bool) {
	return extract(rec, outcomePaths[src], minOutcomeLen)
}

func extract(rec record.Record, paths [][]string, minLen int) (string, bool) {
	for _, path := range paths {
		s, ok := rec.StringPath(path...)
		if !ok {
			continue
		}
		if len(s) >= minLen {
			return s, true
		}
	}
	return "", false
}

// timestampFields is the authoritative-timestamp probe order per source.
var timestampFields = map[identity.SourceKind][]string{
	identity.SourceCall:  {"createdAt", "startedAt", "timestamp"},
	identity.SourceSpace: {"createdAt", "updatedAt", "lastMessageAt"},
	identity.SourceTask:  {"createdAt", "updatedAt"},
	identity.SourceEvent: {"start", "startTime", "startAt"},
}

// Timestamp returns the record's authoritative timestamp for its source
// kind.
func Timestamp(rec record.Record, src identity.SourceKind) (time.Time, bool) {
	return rec.Timestamp(timestampFields[src]...)
}

// IsTaskOpen reports whether a task record is open: not done and not
// snoozed into the future.
func IsTaskOpen(rec record.Record, now time.Time) bool {
	if done, ok := rec.Bool("done"); ok && done {
		return false
	}
	if status, ok := rec.String("status"); ok {
		switch strings.ToLower(status) {
		case "done", "completed":
			return false
		}
	}
	if until, ok := rec.Timestamp("snoozedUntil"); ok && until.After(now) {
		return false
	}
	return true
}

// SourceKey joins a task back to its originating call or space.
func SourceKey(sourceType, sourceID string) string {
	return fmt.Sprintf("%s-%s", sourceType, sourceID)
}

// OpenTaskCounts indexes open tasks by the call/space they link to.
func OpenTaskCounts(tasks []record.Record, now time.Time) map[string]int {
	counts := make(map[string]int)
	for _, task := range tasks {
		if !IsTaskOpen(task, now) {
			continue
		}
		srcType, ok1 := task.String("sourceType")
		srcID, ok2 := task.String("sourceId")
		if !ok1 || !ok2 {
			continue
		}
		counts[SourceKey(srcType, srcID)]++
	}
	return counts
}
