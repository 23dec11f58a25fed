package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
)

func newTestMemoryStore(t *testing.T, opts ...Option) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_Roster(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)

	bo, err := s.AddStudent(ctx, "  Bo  ", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bo.Name != "Bo" || bo.ID == "" {
		t.Errorf("unexpected student %+v", bo)
	}
	ann, _ := s.AddStudent(ctx, "Ann", 1)

	if _, err := s.AddStudent(ctx, "B0b", 3); !errors.Is(err, model.ErrInvalidStudent) {
		t.Errorf("expected ErrInvalidStudent, got %v", err)
	}

	roster, err := s.Roster(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 2 || roster[0].ID != ann.ID || roster[1].ID != bo.ID {
		t.Errorf("roster not ordered by roll: %+v", roster)
	}

	bo.RollNumber = 0
	if _, err := s.UpdateStudent(ctx, bo); !errors.Is(err, model.ErrInvalidStudent) {
		t.Errorf("expected ErrInvalidStudent, got %v", err)
	}
	bo.RollNumber = 1
	if _, err := s.UpdateStudent(ctx, bo); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := s.UpdateStudent(ctx, model.Student{ID: "missing", Name: "X", RollNumber: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteStudent(ctx, ann.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.DeleteStudent(ctx, ann.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	roster, _ = s.Roster(ctx)
	if len(roster) != 1 || roster[0].RollNumber != 1 {
		t.Errorf("unexpected roster after delete: %+v", roster)
	}
}

func TestMemoryStore_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)
	d := model.NewDate(2024, 4, 1)
	recs := []model.Record{
		{StudentID: "s2", Date: d, Status: model.StatusAbsent},
		{StudentID: "s1", Date: d, Status: model.StatusPresent},
	}

	if err := s.Update(ctx, d, recs); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound before create, got %v", err)
	}
	if err := s.Create(ctx, d, recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Create(ctx, d, recs); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.RecordsByDate(ctx, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].StudentID != "s1" || got[1].Status != model.StatusAbsent {
		t.Errorf("unexpected records: %+v", got)
	}

	// Update replaces the whole set.
	if err := s.Update(ctx, d, recs[:1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = s.RecordsByDate(ctx, d)
	if len(got) != 1 || got[0].StudentID != "s2" {
		t.Errorf("update did not replace set: %+v", got)
	}

	bad := []model.Record{{StudentID: "s1", Date: d, Status: model.StatusUnmarked}}
	if err := s.Update(ctx, d, bad); !errors.Is(err, store.ErrInvalidRecords) {
		t.Errorf("expected ErrInvalidRecords, got %v", err)
	}

	if got, _ := s.RecordsByDate(ctx, d.AddDays(1)); len(got) != 0 {
		t.Errorf("expected no records for other date, got %+v", got)
	}
}

func TestMemoryStore_RecordsByMonth(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)
	for _, d := range []model.Date{model.NewDate(2024, 3, 31), model.NewDate(2024, 4, 2), model.NewDate(2024, 4, 1)} {
		if err := s.Create(ctx, d, []model.Record{{StudentID: "s1", Date: d, Status: model.StatusPresent}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := s.RecordsByMonth(ctx, model.Period{Month: time.April, Year: 2024})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Date.Day != 1 || got[1].Date.Day != 2 {
		t.Errorf("unexpected month records: %+v", got)
	}

	if _, err := s.RecordsByMonth(ctx, model.Period{Month: 0, Year: 2024}); !errors.Is(err, model.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)
	d := model.NewDate(2024, 4, 1)

	const writers = 16
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Create(ctx, d, []model.Record{{StudentID: "s1", Date: d, Status: model.StatusPresent}})
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, store.ErrAlreadyExists):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly one create to win, got %d", created)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := newTestMemoryStore(t, WithStudents(model.Student{ID: "s1", Name: "Ann", RollNumber: 1}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Roster(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	roster, _ := s.Roster(context.Background())
	if len(roster) != 1 {
		t.Errorf("expected seeded student, got %+v", roster)
	}
}

func TestMemoryStore_Close(t *testing.T) {
	s := NewMemoryStore(context.Background(), WithMetricsUpdateInterval(time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
}
