package gpt

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	PayloadMeal    = "meal"
	PayloadWorkout = "workout"
)

// Payload is the structured object a generation response may embed in its prose.
type Payload struct {
	Type           string
	Description    string
	WorkoutType    string
	Calories       *float64
	CaloriesBurned *float64
	Proteins       *float64
	Fats           *float64
	Carbs          *float64
	// Prefix is the prose preceding the object.
	Prefix string
}

func (p Payload) IsMeal() bool {
	return p.Type == PayloadMeal
}

func (p Payload) IsWorkout() bool {
	return p.Type == PayloadWorkout
}

// HasDescription reports whether the payload carries a non-empty description.
func (p Payload) HasDescription() bool {
	return strings.TrimSpace(p.Description) != ""
}

// ExtractPayload reads the object spanning the first '{' to the last '}' of text.
// It returns false when there is no object or it is not valid JSON.
func ExtractPayload(text string) (Payload, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Payload{}, false
	}

	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return Payload{}, false
	}
	r := gjson.Parse(raw)
	if !r.IsObject() {
		return Payload{}, false
	}

	prefix := strings.TrimSpace(text[:start])
	prefix = strings.TrimSpace(strings.TrimSuffix(prefix, "```json"))
	prefix = strings.TrimSpace(strings.TrimSuffix(prefix, "```"))

	return Payload{
		Type:           strings.ToLower(strings.TrimSpace(r.Get("type").String())),
		Description:    strings.TrimSpace(r.Get("description").String()),
		WorkoutType:    strings.TrimSpace(r.Get("workout_type").String()),
		Calories:       number(r, "calories", "kcal"),
		CaloriesBurned: number(r, "calories_burned"),
		Proteins:       number(r, "proteins", "protein", "macros.proteins", "macros.protein"),
		Fats:           number(r, "fats", "fat", "macros.fats", "macros.fat"),
		Carbs:          number(r, "carbs", "carbohydrates", "macros.carbs", "macros.carbohydrates"),
		Prefix:         prefix,
	}, true
}

func number(r gjson.Result, paths ...string) *float64 {
	for _, path := range paths {
		v := r.Get(path)
		switch v.Type {
		case gjson.Number:
			f := v.Float()
			return &f
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}
