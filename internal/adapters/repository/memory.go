package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/metrics"
)

// MemoryStore keeps the roster and one record set per date in memory.
// Create is an atomic create-if-absent per date; Update replaces the set.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]model.Student
	sheets   map[model.Date]map[string]model.Status

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs an empty store and starts its metrics updater,
// which stops on Close or when ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		students:              make(map[string]model.Student),
		sheets:                make(map[model.Date]map[string]model.Status),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutines.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	n := len(s.students)
	s.mu.RUnlock()
	metrics.UpdateRosterSize(n)
}

// Roster returns every student ordered by roll number then ID.
func (s *MemoryStore) Roster(ctx context.Context) (_ []model.Student, err error) {
	defer observe(backendMemory, "roster", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	s.mu.RUnlock()

	model.SortStudents(out)
	return out, nil
}

// RecordsByDate returns the date's records ordered by student ID.
func (s *MemoryStore) RecordsByDate(ctx context.Context, date model.Date) (_ []model.Record, err error) {
	defer observe(backendMemory, "records_by_date", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := appendSheet(nil, date, s.sheets[date])
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// RecordsByMonth returns every record in the period ordered by date then student.
func (s *MemoryStore) RecordsByMonth(ctx context.Context, period model.Period) (_ []model.Record, err error) {
	defer observe(backendMemory, "records_by_month", time.Now(), &err)
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.Record
	s.mu.RLock()
	for date, sheet := range s.sheets {
		if period.Contains(date) {
			out = appendSheet(out, date, sheet)
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func appendSheet(out []model.Record, date model.Date, sheet map[string]model.Status) []model.Record {
	for id, st := range sheet {
		out = append(out, model.Record{StudentID: id, Date: date, Status: st})
	}
	return out
}

// Create stores the set for date unless one already exists.
func (s *MemoryStore) Create(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe(backendMemory, "create", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[date]; ok {
		return store.ErrAlreadyExists
	}
	s.sheets[date] = toSheet(records)
	return nil
}

// Update replaces the set for date. Last write wins.
func (s *MemoryStore) Update(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe(backendMemory, "update", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[date]; !ok {
		return store.ErrNotFound
	}
	s.sheets[date] = toSheet(records)
	return nil
}

func toSheet(records []model.Record) map[string]model.Status {
	sheet := make(map[string]model.Status, len(records))
	for _, r := range records {
		sheet[r.StudentID] = r.Status
	}
	return sheet
}

// AddStudent validates and stores a new student with a generated ID.
func (s *MemoryStore) AddStudent(ctx context.Context, name string, rollNumber int) (_ model.Student, err error) {
	defer observe(backendMemory, "add_student", time.Now(), &err)
	if err := model.ValidateStudent(name, rollNumber); err != nil {
		return model.Student{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Student{}, err
	}

	st := model.Student{ID: uuid.NewString(), Name: model.NormalizeName(name), RollNumber: rollNumber}
	s.mu.Lock()
	s.students[st.ID] = st
	s.mu.Unlock()
	return st, nil
}

// UpdateStudent renames or renumbers an existing student.
func (s *MemoryStore) UpdateStudent(ctx context.Context, student model.Student) (_ model.Student, err error) {
	defer observe(backendMemory, "update_student", time.Now(), &err)
	if err := model.ValidateStudent(student.Name, student.RollNumber); err != nil {
		return model.Student{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Student{}, err
	}

	student.Name = model.NormalizeName(student.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; !ok {
		return model.Student{}, fmt.Errorf("student %s: %w", student.ID, store.ErrNotFound)
	}
	s.students[student.ID] = student
	return student, nil
}

// DeleteStudent removes a student from the roster. Their past records are
// kept and simply no longer appear in reports.
func (s *MemoryStore) DeleteStudent(ctx context.Context, id string) (err error) {
	defer observe(backendMemory, "delete_student", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return fmt.Errorf("student %s: %w", id, store.ErrNotFound)
	}
	delete(s.students, id)
	return nil
}
