// Package report renders learner statistics as an Excel workbook.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

// Sheet names.
const (
	SummarySheet  = "Summary"
	ProgressSheet = "Paths"
)

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Source is the subset of learning.Engine the report reads from.
type Source interface {
	GetUserStats(ctx context.Context, userID string) (*learning.UserStats, error)
	ListUserProgress(ctx context.Context, userID string) ([]learning.LearningProgress, error)
	GetPath(ctx context.Context, id string) (*learning.LearningPath, error)
}

// PathRow is one line of the per-path progress sheet.
type PathRow struct {
	PathID         string
	Title          string
	Category       string
	CompletedSteps int
	TotalSteps     int
	Completion     float64
	TimeSpent      int // minutes
	CurrentStepID  string
	StartedAt      time.Time
	LastAccessedAt time.Time
}

// UserReport is everything rendered for one learner.
type UserReport struct {
	Stats learning.UserStats
	Paths []PathRow
}

// Build collects the stats and per-path rows for userID. Progress on deleted paths is
// left out.
func Build(ctx context.Context, src Source, userID string) (*UserReport, error) {
	stats, err := src.GetUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := src.ListUserProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows := make([]PathRow, 0, len(records))
	for _, r := range records {
		path, err := src.GetPath(ctx, r.PathID)
		if errors.Is(err, learning.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, PathRow{
			PathID:         r.PathID,
			Title:          path.Title,
			Category:       path.Category,
			CompletedSteps: len(r.CompletedSteps),
			TotalSteps:     len(path.Steps),
			Completion:     r.CompletionPercentage,
			TimeSpent:      r.TotalTimeSpent,
			CurrentStepID:  r.CurrentStepID,
			StartedAt:      r.StartedAt,
			LastAccessedAt: r.LastAccessedAt,
		})
	}
	return &UserReport{Stats: *stats, Paths: rows}, nil
}

// Write renders rep as an .xlsx workbook with a summary sheet and a per-path sheet.
func Write(w io.Writer, rep *UserReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ProgressSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummary(f, header, rep.Stats); err != nil {
		return err
	}
	if err := writePaths(f, header, rep.Paths); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, header int, s learning.UserStats) error {
	achievements := make([]string, 0, len(s.Achievements))
	for _, a := range s.Achievements {
		achievements = append(achievements, a.Title)
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"User", s.UserID},
		{"Completed paths", s.CompletedPaths},
		{"In-progress paths", s.InProgressPaths},
		{"Total time (minutes)", s.TotalTimeSpent},
		{"Average completion (%)", s.AverageCompletion},
		{"Favorite categories", strings.Join(s.FavoriteCategories, ", ")},
		{"Achievements", strings.Join(achievements, ", ")},
	}
	if err := setRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", header); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "B", 28)
}

func writePaths(f *excelize.File, header int, paths []PathRow) error {
	rows := make([][]any, 0, len(paths)+1)
	rows = append(rows, []any{
		"Path ID", "Title", "Category", "Completed steps", "Total steps",
		"Completion (%)", "Time spent (minutes)", "Current step", "Started", "Last accessed",
	})
	for _, p := range paths {
		rows = append(rows, []any{
			p.PathID, p.Title, p.Category, p.CompletedSteps, p.TotalSteps,
			p.Completion, p.TimeSpent, p.CurrentStepID,
			p.StartedAt.UTC().Format(time.RFC3339), p.LastAccessedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := setRows(f, ProgressSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(ProgressSheet, "A1", "J1", header); err != nil {
		return fmt.Errorf("style path header: %w", err)
	}
	return f.SetColWidth(ProgressSheet, "A", "J", 18)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
