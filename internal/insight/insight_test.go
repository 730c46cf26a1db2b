package insight

import (
	"testing"
	"time"

	"github.com/attendhq/attend/internal/identity"
	"github.com/attendhq/attend/internal/record"
	"github.com/attendhq/attend/internal/snapshot"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuildCorrelatesAcrossSources(t *testing.T) {
	snap := &snapshot.Snapshot{
		Calls: []record.Record{
			{"id": "c1", "email": "kim@acme.de", "createdAt": "2026-02-27T10:00:00Z"},
		},
		Spaces: []record.Record{
			{"id": "s1", "email": "kim@acme.de", "createdAt": "2026-02-28T09:00:00Z",
				"metadata": map[string]any{
					"spaceSummary": map[string]any{"outcome": "Angebot angefragt"},
				}},
		},
		Tasks: []record.Record{
			{"id": "t1", "email": "kim@acme.de", "sourceType": "call", "sourceId": "c1",
				"createdAt": "2026-02-26T08:00:00Z"},
		},
	}

	insights := Build(snap, now)
	if len(insights) != 1 {
		t.Fatalf("expected one insight, got %d", len(insights))
	}
	in := insights[0]
	if in.Ref.Key != "email:kim@acme.de" {
		t.Fatalf("key=%q", in.Ref.Key)
	}
	if in.LastActivityType != identity.SourceSpace {
		t.Fatalf("lastActivityType=%q want space", in.LastActivityType)
	}
	if in.LastActivityAt == nil || !in.LastActivityAt.Equal(time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("lastActivityAt=%v", in.LastActivityAt)
	}
	if in.LastOutcome != "Angebot angefragt" {
		t.Fatalf("lastOutcome=%q", in.LastOutcome)
	}
	if in.OpenTasks != 1 {
		t.Fatalf("openTasks=%d want 1", in.OpenTasks)
	}
	if len(in.Sources.Calls) != 1 || len(in.Sources.Spaces) != 1 || len(in.Sources.Tasks) != 1 {
		t.Fatalf("sources=%+v", in.Sources)
	}
}

func TestBuildSkipsUnresolvable(t *testing.T) {
	snap := &snapshot.Snapshot{
		Calls: []record.Record{
			{"id": "c1"}, // no identity fields
			{"id": "c2", "phoneNumber": "+491512345678"},
		},
	}
	insights := Build(snap, now)
	if len(insights) != 1 {
		t.Fatalf("unresolvable record must be skipped, got %d insights", len(insights))
	}
}

func TestBuildTieKeepsFirstSeen(t *testing.T) {
	// Same timestamp on a call and a space: iteration order is calls
	// before spaces, and a tie never overwrites.
	snap := &snapshot.Snapshot{
		Calls: []record.Record{
			{"id": "c1", "email": "x@y.de", "createdAt": "2026-02-28T09:00:00Z"},
		},
		Spaces: []record.Record{
			{"id": "s1", "email": "x@y.de", "createdAt": "2026-02-28T09:00:00Z"},
		},
	}
	insights := Build(snap, now)
	if len(insights) != 1 {
		t.Fatalf("expected one insight, got %d", len(insights))
	}
	if insights[0].LastActivityType != identity.SourceCall {
		t.Fatalf("tie must keep first seen (call), got %q", insights[0].LastActivityType)
	}
}

func TestBuildCountsOncePerRecord(t *testing.T) {
	snap := &snapshot.Snapshot{
		Calls: []record.Record{
			{"id": "c1", "email": "x@y.de", "status": "failed",
				"summary": map[string]any{"nextStep": "Kunden zurückrufen"}},
		},
	}
	in := Build(snap, now)[0]
	if in.FailedCount != 1 || in.ActionCount != 0 || in.PendingCount != 0 {
		t.Fatalf("a record increments exactly one counter: %+v", in)
	}
}

func TestRankOrdering(t *testing.T) {
	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	a := &ContactInsight{Ref: identity.ContactRef{Key: "a"}, FailedCount: 1}
	b := &ContactInsight{Ref: identity.ContactRef{Key: "b"}, OpenTasks: 3, LastActivityAt: &newer}
	c := &ContactInsight{Ref: identity.ContactRef{Key: "c"}, LastActivityAt: &newer}
	d := &ContactInsight{Ref: identity.ContactRef{Key: "d"}, LastActivityAt: &older}
	e := &ContactInsight{Ref: identity.ContactRef{Key: "e"}} // no timestamp

	insights := []*ContactInsight{e, d, c, b, a}
	Rank(insights)

	got := make([]string, len(insights))
	for i, in := range insights {
		got[i] = in.Ref.Key
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order %v want %v", got, want)
		}
	}
}

func TestRankNoTimestampNeverAboveTimestamped(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withTS := &ContactInsight{Ref: identity.ContactRef{Key: "with"}, LastActivityAt: &ts}
	without := &ContactInsight{Ref: identity.ContactRef{Key: "without"}}

	insights := []*ContactInsight{without, withTS}
	Rank(insights)
	if insights[0].Ref.Key != "with" {
		t.Fatal("contact without timestamp ranked above timestamped contact")
	}
}

func TestRankStable(t *testing.T) {
	a := &ContactInsight{Ref: identity.ContactRef{Key: "first"}, PendingCount: 1}
	b := &ContactInsight{Ref: identity.ContactRef{Key: "second"}, PendingCount: 1}
	insights := []*ContactInsight{a, b}
	Rank(insights)
	if insights[0].Ref.Key != "first" {
		t.Fatal("equal contacts must keep input order")
	}
}

func TestBestSource(t *testing.T) {
	snap := &snapshot.Snapshot{
		Calls: []record.Record{
			{"id": "c1", "email": "x@y.de", "createdAt": "2026-02-25T10:00:00Z"},
		},
		Spaces: []record.Record{
			{"id": "s1", "email": "x@y.de", "createdAt": "2026-02-27T10:00:00Z"},
		},
		Tasks: []record.Record{
			{"id": "t1", "email": "x@y.de", "createdAt": "2026-02-28T10:00:00Z"},
		},
	}
	in := Build(snap, now)[0]
	rec, kind, ok := BestSource(in)
	if !ok {
		t.Fatal("expected a best source")
	}
	if kind != identity.SourceSpace {
		t.Fatalf("kind=%q want space (tasks never win)", kind)
	}
	if id, _ := rec.String("id"); id != "s1" {
		t.Fatalf("best source id=%q want s1", id)
	}
}

func TestBestSourceEmpty(t *testing.T) {
	in := &ContactInsight{}
	if _, _, ok := BestSource(in); ok {
		t.Fatal("insight without calls or spaces has no best source")
	}
}
