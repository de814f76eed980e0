package export

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"fitness-bot/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetWorkouts = "Тренировки"
	SheetMeals    = "Питание"

	FileName = "history.xlsx"

	minColWidth = 12
	maxColWidth = 50
)

// History renders workouts and meals into an xlsx workbook.
func History(workouts []models.WorkoutRecord, meals []models.MealRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetWorkouts); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetMeals); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(cellStyle(true))
	if err != nil {
		return nil, err
	}
	bodyStyle, err := f.NewStyle(cellStyle(false))
	if err != nil {
		return nil, err
	}

	workoutRows := make([][]interface{}, 0, len(workouts))
	for _, w := range workouts {
		workoutRows = append(workoutRows, []interface{}{
			w.Date.Format("2006-01-02"), string(w.Type), w.Details, optional(w.CaloriesBurned),
		})
	}
	if err := writeSheet(f, SheetWorkouts, []interface{}{"Дата", "Тип", "Описание", "Калории (если есть)"},
		workoutRows, headerStyle, bodyStyle); err != nil {
		return nil, err
	}

	mealRows := make([][]interface{}, 0, len(meals))
	for _, m := range meals {
		mealRows = append(mealRows, []interface{}{
			m.Date.Format("2006-01-02"), m.Description, optional(m.Calories),
			optional(m.Proteins), optional(m.Fats), optional(m.Carbs),
		})
	}
	if err := writeSheet(f, SheetMeals, []interface{}{"Дата", "Описание", "Калории", "Белки", "Жиры", "Углеводы"},
		mealRows, headerStyle, bodyStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle, bodyStyle int) error {
	widths := make([]int, len(header))
	all := append([][]interface{}{header}, rows...)

	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		for c, v := range row {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[c] {
				widths[c] = n
			}
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	if len(rows) > 0 {
		end, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A2", end, bodyStyle); err != nil {
			return err
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, columnWidth(w)); err != nil {
			return err
		}
	}
	return nil
}

func columnWidth(contentLen int) float64 {
	return float64(max(minColWidth, min(contentLen+2, maxColWidth)))
}

func cellStyle(bold bool) *excelize.Style {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	return &excelize.Style{
		Font:      &excelize.Font{Bold: bold},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		Border:    border,
	}
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
