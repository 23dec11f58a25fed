package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

type studentRow struct {
	ID         string `gorm:"primaryKey;type:text"`
	Name       string `gorm:"type:varchar(120);not null"`
	RollNumber int    `gorm:"not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (studentRow) TableName() string { return "students" }

// sheetRow marks that a date has a committed record set. Its primary key
// makes concurrent creates for one date collide.
type sheetRow struct {
	Date      datatypes.Date `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (sheetRow) TableName() string { return "attendance_sheets" }

type recordRow struct {
	StudentID string         `gorm:"primaryKey;type:text"`
	Date      datatypes.Date `gorm:"primaryKey;index"`
	Status    string         `gorm:"type:varchar(16);not null"`
}

func (recordRow) TableName() string { return "attendance_records" }

// PostgresStore persists the roster and attendance with gorm.
type PostgresStore struct {
	db            *gorm.DB
	log           logger.Logger
	slowThreshold time.Duration
	autoMigrate   bool
}

// OpenPostgres connects to dsn and, unless disabled, migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	s := &PostgresStore{
		log:           logger.For("postgres"),
		slowThreshold: 200 * time.Millisecond,
		autoMigrate:   true,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         newGormLogger(s.log, s.slowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s.db = db

	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresStore wraps an existing gorm handle.
func NewPostgresStore(db *gorm.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, log: logger.For("postgres"), slowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&studentRow{}, &sheetRow{}, &recordRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Roster returns every student ordered by roll number then ID.
func (s *PostgresStore) Roster(ctx context.Context) (_ []model.Student, err error) {
	defer observe(backendPostgres, "roster", time.Now(), &err)

	var rows []studentRow
	if err := s.db.WithContext(ctx).Order("roll_number, id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]model.Student, len(rows))
	for i, r := range rows {
		out[i] = model.Student{ID: r.ID, Name: r.Name, RollNumber: r.RollNumber}
	}
	return out, nil
}

// RecordsByDate returns the date's records ordered by student ID.
func (s *PostgresStore) RecordsByDate(ctx context.Context, date model.Date) (_ []model.Record, err error) {
	defer observe(backendPostgres, "records_by_date", time.Now(), &err)

	var rows []recordRow
	if err := s.db.WithContext(ctx).
		Where("date = ?", toDBDate(date)).
		Order("student_id").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return fromRecordRows(rows), nil
}

// RecordsByMonth returns every record in the period ordered by date then student.
func (s *PostgresStore) RecordsByMonth(ctx context.Context, period model.Period) (_ []model.Record, err error) {
	defer observe(backendPostgres, "records_by_month", time.Now(), &err)
	if err := period.Validate(); err != nil {
		return nil, err
	}

	var rows []recordRow
	if err := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", toDBDate(period.First()), toDBDate(period.Last())).
		Order("date, student_id").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return fromRecordRows(rows), nil
}

// Create inserts the sheet row and the records in one transaction. A
// second create for the same date fails on the sheet primary key.
func (s *PostgresStore) Create(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe(backendPostgres, "create", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sheetRow{Date: toDBDate(date)}).Error; err != nil {
			return err
		}
		return insertRecords(tx, records)
	})
	return translateError(err)
}

// Update locks the sheet row, then replaces the date's records.
func (s *PostgresStore) Update(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe(backendPostgres, "update", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}

	d := toDBDate(date)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet sheetRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("date = ?", d).
			Take(&sheet).Error; err != nil {
			return err
		}
		if err := tx.Where("date = ?", d).Delete(&recordRow{}).Error; err != nil {
			return err
		}
		if err := insertRecords(tx, records); err != nil {
			return err
		}
		return tx.Model(&sheetRow{}).Where("date = ?", d).Update("updated_at", time.Now()).Error
	})
	return translateError(err)
}

func insertRecords(tx *gorm.DB, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]recordRow, len(records))
	for i, r := range records {
		rows[i] = recordRow{StudentID: r.StudentID, Date: toDBDate(r.Date), Status: string(r.Status)}
	}
	return tx.Create(&rows).Error
}

// AddStudent validates and inserts a new student with a generated ID.
func (s *PostgresStore) AddStudent(ctx context.Context, name string, rollNumber int) (_ model.Student, err error) {
	defer observe(backendPostgres, "add_student", time.Now(), &err)
	if err := model.ValidateStudent(name, rollNumber); err != nil {
		return model.Student{}, err
	}

	row := studentRow{ID: uuid.NewString(), Name: model.NormalizeName(name), RollNumber: rollNumber}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Student{}, translateError(err)
	}
	return model.Student{ID: row.ID, Name: row.Name, RollNumber: row.RollNumber}, nil
}

// UpdateStudent renames or renumbers an existing student.
func (s *PostgresStore) UpdateStudent(ctx context.Context, student model.Student) (_ model.Student, err error) {
	defer observe(backendPostgres, "update_student", time.Now(), &err)
	if err := model.ValidateStudent(student.Name, student.RollNumber); err != nil {
		return model.Student{}, err
	}

	student.Name = model.NormalizeName(student.Name)
	res := s.db.WithContext(ctx).Model(&studentRow{}).
		Where("id = ?", student.ID).
		Updates(map[string]any{"name": student.Name, "roll_number": student.RollNumber})
	if res.Error != nil {
		return model.Student{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Student{}, fmt.Errorf("student %s: %w", student.ID, store.ErrNotFound)
	}
	return student, nil
}

// DeleteStudent removes a student from the roster and keeps their records.
func (s *PostgresStore) DeleteStudent(ctx context.Context, id string) (err error) {
	defer observe(backendPostgres, "delete_student", time.Now(), &err)

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&studentRow{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("student %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func toDBDate(d model.Date) datatypes.Date {
	return datatypes.Date(d.Midnight(time.UTC))
}

func fromDBDate(d datatypes.Date) model.Date {
	return model.DateOf(time.Time(d))
}

func fromRecordRows(rows []recordRow) []model.Record {
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = model.Record{StudentID: r.StudentID, Date: fromDBDate(r.Date), Status: model.Status(r.Status)}
	}
	return out
}

// translateError maps driver and gorm errors onto the store taxonomy.
// Context errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return store.Unavailable("postgres", err)
	}
}
