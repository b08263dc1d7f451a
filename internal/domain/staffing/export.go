package staffing

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/medsched/medsched/internal/domain/calendar"
)

const exportSheet = "Staffing"

var exportHeader = []string{"Department", "Date", "Period", "Kind", "Activity", "Doctors", "Skill", "Role", "Needed", "Assigned", "Gap"}

// ExportXLSX renders the staffing view of [from, to] as a workbook with one
// row per (unit, need). Units without needs get a single row. Rows with a
// positive gap are highlighted.
func (s *Service) ExportXLSX(ctx context.Context, from, to time.Time) (*bytes.Buffer, error) {
	views, err := s.Staffing(ctx, from, to)
	if err != nil {
		return nil, err
	}
	labels, err := s.repos.Labels.Labels(ctx)
	if err != nil {
		return nil, err
	}
	name := func(id uuid.UUID) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return id.String()
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(exportSheet, "A", "A", 24)
	f.SetColWidth(exportSheet, "B", "B", 12)
	f.SetColWidth(exportSheet, "E", "H", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	gapStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})

	for i, h := range exportHeader {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, c, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	f.SetCellStyle(exportSheet, "A1", last, headerStyle)

	row := 2
	for _, v := range views {
		u := v.Unit
		activity := ""
		if u.ActivityID != nil {
			activity = name(*u.ActivityID)
		}
		base := []interface{}{name(u.DepartmentID), u.Date.Format(calendar.DateLayout), string(u.Period), string(u.Kind), activity, v.DoctorCount}

		if len(v.Needs) == 0 {
			writeRow(f, row, base)
			row++
			continue
		}
		for _, n := range v.Needs {
			writeRow(f, row, append(base[:len(base):len(base)], name(n.SkillID), name(n.RoleID), n.Needed, n.Assigned, n.Gap))
			if n.Gap > 0 {
				first, _ := excelize.CoordinatesToCellName(1, row)
				end, _ := excelize.CoordinatesToCellName(len(exportHeader), row)
				f.SetCellStyle(exportSheet, first, end, gapStyle)
			}
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeRow(f *excelize.File, row int, values []interface{}) {
	c, _ := excelize.CoordinatesToCellName(1, row)
	f.SetSheetRow(exportSheet, c, &values)
}
