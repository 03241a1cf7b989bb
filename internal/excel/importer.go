package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath  string // Path to the Excel or CSV file
	SheetName string // Name of the sheet to import
	StartRow  int    // The row to start importing from (1-based index)
}

// Expected columns, fixed order:
// A type, B content, C translation, D romanization, E example, F lesson, G difficulty
const columnCount = 7

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName: "Sheet1",
		StartRow:  2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// ImportEntities imports curriculum entities from an Excel or CSV file
func ImportEntities(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))

	if ext == ".csv" {
		return importFromCSV(ctx, config)
	}

	return importFromExcel(ctx, config)
}

// importFromExcel imports entities from an Excel file
func importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	repo := database.NewEntityRepository()

	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}

		result.TotalProcessed++

		if err := processRow(ctx, repo, row, result, i+1); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}

	return result, nil
}

// importFromCSV imports entities from a CSV file
func importFromCSV(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	result := &ImportResult{Errors: make([]string, 0)}
	repo := database.NewEntityRepository()

	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}

		result.TotalProcessed++

		if err := processRow(ctx, repo, row, result, rowNum); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}

	return result, nil
}

// processRow creates or updates one entity from a spreadsheet row.
func processRow(ctx context.Context, repo *database.EntityRepository, row []string, result *ImportResult, rowNum int) error {
	if len(row) < 3 {
		result.Skipped++
		return fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}

	// Pad missing optional columns
	for len(row) < columnCount {
		row = append(row, "")
	}

	entityType := models.EntityType(strings.TrimSpace(strings.ToLower(row[0])))
	content := strings.TrimSpace(row[1])
	translation := strings.TrimSpace(row[2])

	if !models.ValidEntityType(entityType) {
		result.Skipped++
		return fmt.Errorf("unknown entity type %q", row[0])
	}
	if content == "" || translation == "" {
		result.Skipped++
		return errors.New("content and translation are required")
	}

	lessonID := strings.TrimSpace(row[5])
	if lessonID == "" {
		lessonID = fmt.Sprintf("%s-default", entityType)
	}

	difficulty := 1
	if d, err := strconv.Atoi(strings.TrimSpace(row[6])); err == nil && d >= 1 && d <= 5 {
		difficulty = d
	}

	entity := &models.Entity{
		EntityType:   entityType,
		Content:      content,
		Translation:  translation,
		Romanization: strings.TrimSpace(row[3]),
		Example:      strings.TrimSpace(row[4]),
		LessonID:     lessonID,
		Difficulty:   difficulty,
		Position:     rowNum,
	}

	existing, err := repo.GetByContentAndLesson(ctx, entityType, content, lessonID)
	if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		return err
	}

	if existing != nil {
		entity.ID = existing.ID
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}
		result.Updated++
		return nil
	}

	if err := repo.Create(ctx, entity); err != nil {
		return err
	}
	result.Created++
	return nil
}
