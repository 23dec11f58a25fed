package report

import (
	"fmt"
	"io"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

var workbookHeader = []any{"Roll No", "Name", "Present", "Absent", "Total", "Percentage"}

// WriteMonthlyWorkbook renders a monthly report as an XLSX workbook with a
// header row, one row per student and an overall row.
func WriteMonthlyWorkbook(w io.Writer, period model.Period, rows []model.MonthlyAggregate) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", "Attendance "+period.String()); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &workbookHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "F2", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		values := []any{r.RollNumber, r.Name, r.Present, r.Absent, r.Total, r.Percentage}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	o := Overall(rows)
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+3)
	if err != nil {
		return err
	}
	footer := []any{"", "Overall", o.Present, o.Absent, o.Total, o.Percentage}
	if err := f.SetSheetRow(sheet, cell, &footer); err != nil {
		return fmt.Errorf("write overall: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 28); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	return f.Write(w)
}
