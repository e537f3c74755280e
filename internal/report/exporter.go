// Package report renders task listings as xlsx workbooks.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

var reportColumns = []string{
	"ID",
	"Title",
	"Status",
	"Priority",
	"Assigned To",
	"Assigned By",
	"Due Date",
	"Overdue",
	"Hours Spent",
	"Estimated Hours",
	"Category",
	"Tags",
	"Created At",
}

// Exporter builds xlsx reports from task listings
type Exporter struct {
	sheetName string
	logger    *zap.Logger
}

// NewExporter creates a new report exporter
func NewExporter(sheetName string, logger *zap.Logger) *Exporter {
	if sheetName == "" {
		sheetName = "Tasks"
	}
	return &Exporter{
		sheetName: sheetName,
		logger:    logger,
	}
}

// Export renders the tasks as a single-sheet workbook and returns the
// serialized file. Statuses are reported as observed at the given time.
func (e *Exporter) Export(tasks []*entity.Task, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		e.setCell(f, cell, header)
	}

	for row, task := range tasks {
		values := e.taskRow(task, now)
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			e.setCell(f, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	e.logger.Info("Task report exported",
		zap.Int("task_count", len(tasks)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func (e *Exporter) taskRow(task *entity.Task, now time.Time) []interface{} {
	estimated := ""
	if task.EstimatedHours != nil {
		estimated = fmt.Sprintf("%.2f", *task.EstimatedHours)
	}

	overdue := "no"
	if task.IsOverdue(now) {
		overdue = "yes"
	}

	return []interface{}{
		task.ID,
		task.Title,
		string(task.EffectiveStatus(now)),
		string(task.Priority),
		task.AssignedTo,
		task.AssignedBy,
		task.DueDate.Format("2006-01-02"),
		overdue,
		fmt.Sprintf("%.2f", task.HoursSpent()),
		estimated,
		task.Category,
		strings.Join(task.Tags, ", "),
		task.CreatedAt.Format(time.RFC3339),
	}
}

func (e *Exporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(e.sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
