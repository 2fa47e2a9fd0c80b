package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath                     string // Path to the Excel or CSV file
	IDColumn                     string // Column with the object ID; derived from kind and content when empty
	KindColumn                   string // Column with word, morpheme or grammar
	ContentColumn                string // Column with the surface form
	TranslationColumn            string // Column with the gloss
	FrequencyColumn              string
	RelationalDensityColumn      string
	ContextualContributionColumn string
	IRTDifficultyColumn          string
	SheetName                    string // Name of the sheet to import
	StartRow                     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		IDColumn:                     "A",
		KindColumn:                   "B",
		ContentColumn:                "C",
		TranslationColumn:            "D",
		FrequencyColumn:              "E",
		RelationalDensityColumn:      "F",
		ContextualContributionColumn: "G",
		IRTDifficultyColumn:          "H",
		SheetName:                    "Sheet1",
		StartRow:                     2, // By default, start from the second row (skip header)
	}
}

// ObjectSaver stores imported objects
type ObjectSaver interface {
	GetByID(ctx context.Context, id string) (*models.LanguageObject, error)
	// SaveBatch stores all objects or none of them
	SaveBatch(ctx context.Context, objects []models.LanguageObject) error
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int // rows rejected for bad signals
	Errors         []string
}

// ImportObjects imports language objects from an Excel or CSV file.
// Rows with malformed or out-of-range signals are skipped and reported;
// the remaining rows are stored in one batch, so a failed write imports nothing.
func ImportObjects(ctx context.Context, config ImportConfig, saver ObjectSaver) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Errors: make([]string, 0),
	}

	var batch []models.LanguageObject
	seen := make(map[string]int) // object ID -> index in batch
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(row) {
			continue
		}

		result.TotalProcessed++

		obj, err := processRow(ctx, row, config, saver, seen, result)
		if err != nil {
			if shared.IsDataError(err) {
				result.Skipped++
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		if idx, ok := seen[obj.ID]; ok {
			// A later row for the same object wins
			batch[idx] = obj
			continue
		}
		seen[obj.ID] = len(batch)
		batch = append(batch, obj)
	}

	if len(batch) > 0 {
		if err := saver.SaveBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to save imported objects: %w", err)
		}
	}

	log.Printf("Import of %s: processed %d, created %d, updated %d, skipped %d",
		config.FilePath, result.TotalProcessed, result.Created, result.Updated, result.Skipped)
	return result, nil
}

// readExcel returns all rows of a sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %v", err)
	}
	return rows, nil
}

// readCSV returns all records of a CSV file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// processRow parses and validates one row and counts it as created or updated
func processRow(ctx context.Context, row []string, config ImportConfig, saver ObjectSaver, seen map[string]int, result *ImportResult) (models.LanguageObject, error) {
	obj, err := parseRow(row, config)
	if err != nil {
		return obj, err
	}
	if err := priority.ValidateSignal(obj); err != nil {
		return obj, err
	}
	if _, dup := seen[obj.ID]; dup {
		result.Updated++
		return obj, nil
	}

	existing, err := saver.GetByID(ctx, obj.ID)
	switch {
	case err == nil:
		obj.CreatedAt = existing.CreatedAt
		result.Updated++
	case shared.IsNotFound(err):
		result.Created++
	default:
		return obj, err
	}
	return obj, nil
}

// parseRow maps the configured columns onto a language object
func parseRow(row []string, config ImportConfig) (models.LanguageObject, error) {
	var obj models.LanguageObject

	obj.Content = strings.TrimSpace(cell(row, config.ContentColumn))
	if obj.Content == "" {
		return obj, shared.BadData("excel", "Import", "content cannot be empty")
	}
	obj.Translation = strings.TrimSpace(cell(row, config.TranslationColumn))

	kind, err := parseKind(cell(row, config.KindColumn))
	if err != nil {
		return obj, err
	}
	obj.Kind = kind

	obj.ID = strings.TrimSpace(cell(row, config.IDColumn))
	if obj.ID == "" {
		obj.ID = string(obj.Kind) + ":" + strings.ToLower(obj.Content)
	}

	signals := []struct {
		name   string
		column string
		dst    *float64
	}{
		{"frequency", config.FrequencyColumn, &obj.Frequency},
		{"relational_density", config.RelationalDensityColumn, &obj.RelationalDensity},
		{"contextual_contribution", config.ContextualContributionColumn, &obj.ContextualContribution},
		{"irt_difficulty", config.IRTDifficultyColumn, &obj.IRTDifficulty},
	}
	for _, s := range signals {
		raw := strings.TrimSpace(cell(row, s.column))
		// Spreadsheets in many locales write decimal commas
		v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			return obj, shared.BadData("excel", "Import", "%s: cannot parse %q", s.name, raw)
		}
		*s.dst = v
	}
	return obj, nil
}

func parseKind(s string) (models.ObjectKind, error) {
	switch k := models.ObjectKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return models.KindWord, nil
	case models.KindWord, models.KindMorpheme, models.KindGrammar:
		return k, nil
	default:
		return "", shared.BadData("excel", "Import", "unknown kind %q", s)
	}
}

// cell returns the value of a column, or "" when the column is unset or missing
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
