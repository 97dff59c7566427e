package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/logging"
)

type fakeStore struct {
	entities []arkiv.Entity
	lastQ    arkiv.Query
	err      error
}

func (f *fakeStore) MutateEntities(_ context.Context, _ []arkiv.Create) (*arkiv.MutateResult, error) {
	return nil, errors.New("read-only fake")
}

func (f *fakeStore) GetEntities(_ context.Context, q arkiv.Query) ([]arkiv.Entity, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	var out []arkiv.Entity
	for _, ent := range f.entities {
		if matches(ent, q.Where) {
			out = append(out, ent)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// matches applies the predicate tree the way the store would: conjunctions
// recurse, equality leaves match any attribute with that key.
func matches(ent arkiv.Entity, p *arkiv.Predicate) bool {
	if p == nil {
		return true
	}
	if len(p.And) > 0 {
		for _, c := range p.And {
			if !matches(ent, &c) {
				return false
			}
		}
		return true
	}
	for _, a := range ent.Attributes {
		if a.Key == p.Key && a.Value == p.Value {
			return true
		}
	}
	return false
}

func storedEvent(t *testing.T, ev event.Event) arkiv.Entity {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	attrs := []arkiv.Attribute{
		{Key: "eventType", Value: string(ev.Type)},
		{Key: "projectId", Value: ev.ProjectID},
		{Key: "chain", Value: string(ev.Chain)},
		{Key: "timestamp", Value: fmt.Sprintf("%d", ev.Timestamp)},
	}
	if ev.Student != "" {
		attrs = append(attrs, arkiv.Attribute{Key: "student", Value: ev.Student})
	}
	if ev.Reviewer != "" {
		attrs = append(attrs, arkiv.Attribute{Key: "reviewer", Value: ev.Reviewer})
	}
	for _, skill := range ev.Skills {
		attrs = append(attrs, arkiv.Attribute{Key: "skill", Value: skill})
	}
	if ev.Type == event.TypeReviewSubmitted {
		attrs = append(attrs, arkiv.Attribute{Key: "rating", Value: fmt.Sprintf("%d", ev.Rating)})
	}
	return arkiv.Entity{Key: ev.ProjectID, Payload: payload, Attributes: attrs}
}

func TestEventsBuildsConjunction(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, logging.New())

	_, err := svc.Events(context.Background(), Filters{
		EventType: event.TypeProjectCreated,
		Skill:     "React",
		Limit:     25,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	if store.lastQ.Limit != 25 {
		t.Fatalf("limit = %d, want 25", store.lastQ.Limit)
	}
	where := store.lastQ.Where
	if where == nil || len(where.And) != 2 {
		t.Fatalf("where = %+v, want 2-term conjunction", where)
	}
	if !reflect.DeepEqual(where.And[0], arkiv.Eq("eventType", "ProjectCreated")) || !reflect.DeepEqual(where.And[1], arkiv.Eq("skill", "React")) {
		t.Fatalf("unexpected predicates: %+v", where.And)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	ev := event.Event{
		Type: event.TypeProjectCreated, ProjectID: "p1", Student: "0xAAA",
		Chain: event.ChainBase, Timestamp: 100, Skills: []string{"React"},
	}
	store := &fakeStore{entities: []arkiv.Entity{storedEvent(t, ev)}}
	svc := New(store, logging.New())

	got, err := svc.Events(context.Background(), Filters{EventType: event.TypeProjectCreated, Skill: "React", Limit: 10})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(got) != 1 || got[0].ProjectID != "p1" {
		t.Fatalf("round-trip failed, got %+v", got)
	}
}

func TestEventsTimeRangePostFilter(t *testing.T) {
	store := &fakeStore{entities: []arkiv.Entity{
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "early", Timestamp: 50}),
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "in", Timestamp: 150}),
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "edge", Timestamp: 200}),
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "late", Timestamp: 250}),
	}}
	svc := New(store, logging.New())

	got, err := svc.Events(context.Background(), Filters{StartTime: 100, EndTime: 200, Limit: 10})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(got) != 2 || got[0].ProjectID != "in" || got[1].ProjectID != "edge" {
		t.Fatalf("time-range filter wrong (bounds are inclusive), got %+v", got)
	}
}

func TestEventsMinRatingPostFilter(t *testing.T) {
	store := &fakeStore{entities: []arkiv.Entity{
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "r1", Rating: 3, Timestamp: 1}),
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "r2", Rating: 4, Timestamp: 2}),
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "r3", Rating: 5, Timestamp: 3}),
	}}
	svc := New(store, logging.New())

	got, err := svc.Events(context.Background(), Filters{MinRating: 4, Limit: 10})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(got) != 2 || got[0].ProjectID != "r2" || got[1].ProjectID != "r3" {
		t.Fatalf("rating filter wrong, got %+v", got)
	}
}

func TestEventsPropagatesStoreErrors(t *testing.T) {
	sentinel := errors.New("store down")
	svc := New(&fakeStore{err: sentinel}, logging.New())

	if _, err := svc.Events(context.Background(), Filters{Limit: 10}); !errors.Is(err, sentinel) {
		t.Fatalf("store error must propagate, got %v", err)
	}
}

func TestStudentAnalyticsFold(t *testing.T) {
	student := "0xAAA"
	store := &fakeStore{entities: []arkiv.Entity{
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "p1", Student: student,
			Chain: event.ChainBase, Timestamp: 1, Skills: []string{"Rust", "React"}}),
		storedEvent(t, event.Event{Type: event.TypeProjectCreated, ProjectID: "p2", Student: student,
			Chain: event.ChainPolkadot, Timestamp: 2, Skills: []string{"Rust"}}),
		storedEvent(t, event.Event{Type: event.TypeProjectUnlocked, ProjectID: "p1", Student: student,
			Chain: event.ChainBase, Timestamp: 3, Amount: "999999999999999999"}),
		storedEvent(t, event.Event{Type: event.TypeProjectUnlocked, ProjectID: "p2", Student: student,
			Chain: event.ChainPolkadot, Timestamp: 4, Amount: "1"}),
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "p1", Reviewer: "0xR",
			Chain: event.ChainBase, Timestamp: 5, Rating: 5}),
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "p1", Reviewer: "0xR",
			Chain: event.ChainBase, Timestamp: 6, Rating: 3}),
		storedEvent(t, event.Event{Type: event.TypeReviewSubmitted, ProjectID: "p2", Reviewer: "0xR",
			Chain: event.ChainPolkadot, Timestamp: 7, Rating: 4}),
	}}
	svc := New(store, logging.New())

	a, err := svc.StudentAnalytics(context.Background(), student)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}

	if a.TotalProjects != 2 || a.TotalUnlocks != 2 || a.TotalReviews != 3 {
		t.Fatalf("counts wrong: %+v", a)
	}
	// 999999999999999999 + 1 must not lose precision.
	if a.TotalEarnings != "1000000000000000000" {
		t.Fatalf("earnings = %q, want 1000000000000000000", a.TotalEarnings)
	}
	// Running average of 5, 3, 4 processed in order.
	if a.AverageRating != 4.0 {
		t.Fatalf("average rating = %v, want 4.0", a.AverageRating)
	}
	if a.ProjectsByChain[event.ChainBase] != 1 || a.ProjectsByChain[event.ChainPolkadot] != 1 {
		t.Fatalf("per-chain counts wrong: %+v", a.ProjectsByChain)
	}
	if a.SkillDistribution["Rust"] != 2 || a.SkillDistribution["React"] != 1 {
		t.Fatalf("skill distribution wrong: %+v", a.SkillDistribution)
	}
}

// fullPageStore returns exactly the requested limit of entities, the shape a
// truncated result set takes.
type fullPageStore struct {
	student string
}

func (f *fullPageStore) MutateEntities(_ context.Context, _ []arkiv.Create) (*arkiv.MutateResult, error) {
	return nil, errors.New("read-only fake")
}

func (f *fullPageStore) GetEntities(_ context.Context, q arkiv.Query) ([]arkiv.Entity, error) {
	out := make([]arkiv.Entity, 0, q.Limit)
	for i := 0; i < q.Limit; i++ {
		payload, _ := json.Marshal(event.Event{
			Type: event.TypeProjectUnlocked, ProjectID: fmt.Sprintf("p%d", i),
			Student: f.student, Chain: event.ChainBase, Timestamp: int64(i + 1), Amount: "1",
		})
		out = append(out, arkiv.Entity{Key: fmt.Sprintf("p%d", i), Payload: payload})
	}
	return out, nil
}

func TestStudentAnalyticsWarnsOnFullPage(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	svc := New(&fullPageStore{student: "0xAAA"}, log)

	a, err := svc.StudentAnalytics(context.Background(), "0xAAA")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.TotalUnlocks != analyticsLimit {
		t.Fatalf("unlocks = %d, want %d", a.TotalUnlocks, analyticsLimit)
	}
	if !strings.Contains(buf.String(), "truncated") {
		t.Fatalf("full page must be warned about, log output: %s", buf.String())
	}
}

func TestStudentAnalyticsIncrementalAverage(t *testing.T) {
	// The average must progress 5 -> 4 -> 4.0 as reviews fold in order.
	student := "0xBBB"
	ratings := []int{5, 3, 4}
	wantProgress := []float64{5, 4, 4}

	store := &fakeStore{}
	svc := New(store, logging.New())
	for i, r := range ratings {
		projectID := fmt.Sprintf("p%d", i)
		store.entities = append(store.entities,
			storedEvent(t, event.Event{
				Type: event.TypeProjectCreated, ProjectID: projectID, Student: student,
				Chain: event.ChainBase, Timestamp: int64(i + 1),
			}),
			storedEvent(t, event.Event{
				Type: event.TypeReviewSubmitted, ProjectID: projectID,
				Reviewer: "0xR", Chain: event.ChainBase, Timestamp: int64(i + 1), Rating: r,
			}))
		a, err := svc.StudentAnalytics(context.Background(), student)
		if err != nil {
			t.Fatalf("analytics after %d reviews: %v", i+1, err)
		}
		if a.AverageRating != wantProgress[i] {
			t.Fatalf("after %d reviews average = %v, want %v", i+1, a.AverageRating, wantProgress[i])
		}
	}
}
