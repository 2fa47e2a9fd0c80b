package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/example/langsched/internal/queue"
)

var queueHeader = []interface{}{
	"Rank", "ID", "Kind", "Content", "Translation", "Priority", "Urgency", "Final score", "Stage", "Next review",
}

// ExportQueue writes a ranked queue to an .xlsx file
func ExportQueue(path string, items []queue.Item) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Queue"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %v", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &queueHeader); err != nil {
		return fmt.Errorf("failed to write header: %v", err)
	}

	for i, it := range items {
		stage, next := "", ""
		if it.Mastery != nil {
			stage = it.Mastery.Stage.String()
		}
		if it.NextReview != nil {
			next = it.NextReview.Format("2006-01-02")
		}
		row := []interface{}{
			i + 1,
			it.Object.ID,
			string(it.Object.Kind),
			it.Object.Content,
			it.Object.Translation,
			it.Priority,
			it.Urgency,
			it.FinalScore,
			stage,
			next,
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %v", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %v", path, err)
	}
	return nil
}
