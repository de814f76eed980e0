package gpt

import (
	"math/rand"
	"testing"

	"fitness-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayloadMeal(t *testing.T) {
	text := "Отличный выбор!\n```json\n{\"type\": \"Meal\", \"description\": \"овсянка\", \"calories\": 350, " +
		"\"macros\": {\"protein\": 12, \"fat\": \"6.5\", \"carbohydrates\": 60}}\n```"

	p, ok := ExtractPayload(text)
	require.True(t, ok)
	assert.True(t, p.IsMeal())
	assert.Equal(t, "овсянка", p.Description)
	assert.Equal(t, "Отличный выбор!", p.Prefix)
	require.NotNil(t, p.Calories)
	assert.Equal(t, 350.0, *p.Calories)
	require.NotNil(t, p.Proteins)
	assert.Equal(t, 12.0, *p.Proteins)
	require.NotNil(t, p.Fats)
	assert.Equal(t, 6.5, *p.Fats)
	require.NotNil(t, p.Carbs)
	assert.Equal(t, 60.0, *p.Carbs)
}

func TestExtractPayloadWorkout(t *testing.T) {
	p, ok := ExtractPayload(`{"type":"workout","description":"бег 5 км","calories_burned":400}`)
	require.True(t, ok)
	assert.True(t, p.IsWorkout())
	assert.True(t, p.HasDescription())
	require.NotNil(t, p.CaloriesBurned)
	assert.Equal(t, 400.0, *p.CaloriesBurned)
	assert.Nil(t, p.Calories)
	assert.Empty(t, p.Prefix)
}

func TestExtractPayloadAbsentOrMalformed(t *testing.T) {
	for name, text := range map[string]string{
		"no object":  "Пейте больше воды.",
		"malformed":  "вот: {type: meal, description}",
		"reversed":   "} and {",
		"empty text": "",
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := ExtractPayload(text)
			assert.False(t, ok)
		})
	}
}

func TestExtractPayloadEmptyDescription(t *testing.T) {
	p, ok := ExtractPayload(`{"description": "  ", "calories": 0}`)
	require.True(t, ok)
	assert.False(t, p.HasDescription())
}

func TestExerciseNames(t *testing.T) {
	plan := "Разминка 5 минут\n" +
		"1. Приседания — 3x12\n" +
		"2) **Отжимания**: 3x10\n" +
		"3. Планка (60 сек)\n" +
		"4. приседания - 2x15\n" +
		"5. Выпады, 3x10 на каждую ногу\n" +
		"6. Заминка и растяжка\n"

	assert.Equal(t, []string{
		"приседания", "отжимания", "планка", "выпады", "заминка и растяжка",
	}, ExerciseNames(plan))
	assert.Empty(t, ExerciseNames("no numbered lines here"))
}

func TestPickExerciseCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		n := PickExerciseCount(5, 8, rng)
		require.GreaterOrEqual(t, n, 5)
		require.LessOrEqual(t, n, 8)
		seen[n] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, 6, PickExerciseCount(6, 6, rng))
}

func TestPlanPrompt(t *testing.T) {
	prompt := planPrompt(PlanRequest{
		Profile:       models.Profile{Goal: "похудеть", Height: 180},
		Kind:          models.WorkoutFreeTrial,
		ExerciseCount: 6,
		Exclude:       []string{"приседания", "планка"},
	})

	assert.Contains(t, prompt, "пробную")
	assert.Contains(t, prompt, "Ровно 6 упражнений")
	assert.Contains(t, prompt, "приседания, планка")
	assert.Contains(t, prompt, "Ограничения: нет")
}
