package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"fitness-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ptr(f float64) *float64 { return &f }

func TestHistory(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	workouts := []models.WorkoutRecord{
		{Type: models.WorkoutFreeTrial, Details: strings.Repeat("присед ", 20), Date: day},
		{Type: models.WorkoutCustom, Details: "бег", Date: day, CaloriesBurned: ptr(320)},
	}
	meals := []models.MealRecord{
		{Description: "овсянка", Date: day, Calories: ptr(350), Proteins: ptr(12.5)},
	}

	data, err := History(workouts, meals)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetWorkouts, SheetMeals}, f.GetSheetList())

	rows, err := f.GetRows(SheetWorkouts)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Дата", "Тип", "Описание", "Калории (если есть)"}, rows[0])
	assert.Equal(t, []string{"2026-05-01", "custom", "бег", "320"}, rows[2])

	mealRows, err := f.GetRows(SheetMeals)
	require.NoError(t, err)
	require.Len(t, mealRows, 2)
	assert.Equal(t, "овсянка", mealRows[1][1])
	assert.Equal(t, "12.5", mealRows[1][3])

	width, err := f.GetColWidth(SheetWorkouts, "C")
	require.NoError(t, err)
	assert.Equal(t, 50.0, width)

	width, err = f.GetColWidth(SheetWorkouts, "B")
	require.NoError(t, err)
	assert.Equal(t, 12.0, width)
}

func TestHistoryEmpty(t *testing.T) {
	data, err := History(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetMeals)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestColumnWidth(t *testing.T) {
	assert.Equal(t, 12.0, columnWidth(0))
	assert.Equal(t, 22.0, columnWidth(20))
	assert.Equal(t, 50.0, columnWidth(200))
}
