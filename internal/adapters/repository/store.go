// Package repository implements the attendance store on local backends.
package repository

import (
	"sort"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/metrics"
)

var (
	_ store.Store        = (*MemoryStore)(nil)
	_ store.RosterWriter = (*MemoryStore)(nil)
	_ store.Store        = (*PostgresStore)(nil)
	_ store.RosterWriter = (*PostgresStore)(nil)
)

// Backend labels used in metrics.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

// sortRecords orders by date, then student ID.
func sortRecords(records []model.Record) {
	sort.Slice(records, func(i, j int) bool {
		if c := records[i].Date.Compare(records[j].Date); c != 0 {
			return c < 0
		}
		return records[i].StudentID < records[j].StudentID
	})
}

func observe(backend, op string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(backend, op, start, *err)
}
