// Package sheets is the bulk import/export boundary: xlsx workbooks in a
// configured directory, one per entity kind, first sheet only, header row
// skipped. The importer interprets the rows; this package only moves them.
package sheets

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// Workbook file names inside the gateway directory.
const (
	WorkersFile = "workers.xlsx"
	PairsFile   = "pairs.xlsx"
	SurveysFile = "surveys.xlsx"
	ShiftsFile  = "shifts.xlsx"

	AnswersExportFile = "answers_export.xlsx"
	ShiftsExportFile  = "shifts_export.xlsx"
)

type Gateway interface {
	ReadWorkers() ([][]string, error)
	ReadPairs() ([][]string, error)
	ReadSurveys() ([][]string, error)
	ReadShifts() ([][]string, error)
	ExportAnswers(headers []string, rows [][]string) error
	ExportShifts(headers []string, rows [][]string) error
}

// FileGateway reads and writes workbooks under one directory.
type FileGateway struct {
	dir string
}

func NewFileGateway(dir string) *FileGateway {
	return &FileGateway{dir: dir}
}

func (g *FileGateway) ReadWorkers() ([][]string, error) { return g.readRows(WorkersFile) }
func (g *FileGateway) ReadPairs() ([][]string, error)   { return g.readRows(PairsFile) }
func (g *FileGateway) ReadSurveys() ([][]string, error) { return g.readRows(SurveysFile) }
func (g *FileGateway) ReadShifts() ([][]string, error)  { return g.readRows(ShiftsFile) }

func (g *FileGateway) ExportAnswers(headers []string, rows [][]string) error {
	return g.writeRows(AnswersExportFile, "Answers", headers, rows)
}

func (g *FileGateway) ExportShifts(headers []string, rows [][]string) error {
	return g.writeRows(ShiftsExportFile, "Shifts", headers, rows)
}

func (g *FileGateway) readRows(name string) ([][]string, error) {
	path := filepath.Join(g.dir, name)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (g *FileGateway) writeRows(name, sheet string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	write := func(rowIdx int, cells []string) error {
		for col, cell := range cells {
			ref, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, ref, cell); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, headers); err != nil {
		f.Close()
		return fmt.Errorf("write headers: %w", err)
	}
	for i, row := range rows {
		if err := write(i+2, row); err != nil {
			f.Close()
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	path := filepath.Join(g.dir, name)
	if err := f.SaveAs(path); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", name, err)
	}
	return f.Close()
}
