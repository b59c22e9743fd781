// Package report renders appointment overviews for the salon admin as
// xlsx workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"prohair/internal/models"
	"prohair/internal/timezone"
)

const sheetName = "Afspraken"

// Lister provides the appointment rows the report renders.
type Lister interface {
	ListRecent(ctx context.Context, includeCancelled bool, limit int) ([]models.AppointmentSummary, error)
}

// AppointmentsXLSX writes the recent appointments as one worksheet.
// Times are rendered in tz; a bad identifier falls back to the default.
func AppointmentsXLSX(ctx context.Context, store Lister, tz string, includeCancelled bool, w io.Writer) error {
	summaries, err := store.ListRecent(ctx, includeCancelled, 0)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"ID", "Datum", "Tijd", "Behandeling", "Klant", "E-mail", "Telefoon", "Status"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, start, end, style)
	}

	loc := timezone.Location(tz)
	for i, s := range summaries {
		local := s.StartUTC.In(loc)
		row := []interface{}{
			s.ID,
			local.Format("02-01-2006"),
			local.Format("15:04"),
			s.ServiceName,
			s.ClientName,
			s.ClientEmail,
			s.ClientPhone,
			s.Status,
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}

	// Widen the date and contact columns enough to read without resizing.
	_ = f.SetColWidth(sheetName, "B", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "G", 24)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns the conventional download name for a report
// generated at the given instant.
func FileName(now time.Time, tz string) string {
	return fmt.Sprintf("afspraken-%s.xlsx", now.In(timezone.Location(tz)).Format("2006-01-02"))
}
