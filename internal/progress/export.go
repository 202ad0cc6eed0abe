package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Progress"

var exportHeader = []any{"Played at (UTC)", "Total questions", "Correct answers", "Score %"}

// WriteXLSX writes records as a spreadsheet with one row per game.
func WriteXLSX(w io.Writer, userID string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: "Buzzle progress for " + userID}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		score := 0.0
		if rec.TotalQuestions > 0 {
			score = float64(rec.CorrectAnswers) * 100 / float64(rec.TotalQuestions)
		}
		row := []any{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.TotalQuestions,
			rec.CorrectAnswers,
			score,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
