package gpt

import (
	"fmt"
	"strings"

	"fitness-bot/internal/models"
)

const classifierPrompt = "Ты фитнес-бот. Если пользователь сообщает о приёме пищи или тренировке, " +
	"добавь в ответ один JSON-объект с полями type (\"meal\" или \"workout\"), description, calories, " +
	"proteins, fats, carbs (для еды) или calories_burned (для тренировки). " +
	"Если это просто вопрос, дай совет без JSON. Отвечай всегда только на русском языке."

const trainerPrompt = "Ты опытный персональный тренер. Составляешь безопасные тренировки на один день " +
	"с учётом цели, уровня подготовки и ограничений по здоровью. Отвечай всегда только на русском языке."

const photoPrompt = "Определи, что изображено на фото, и оцени калорийность блюда. " +
	"Верни JSON вида: {\"description\": \"...\", \"calories\": ..., \"proteins\": ..., \"fats\": ..., \"carbs\": ...}. " +
	"Если на фото нет еды, верни пустое description. Отвечай всегда только на русском языке."

func planPrompt(req PlanRequest) string {
	p := req.Profile

	var b strings.Builder
	if req.Kind == models.WorkoutFreeTrial {
		b.WriteString("Сгенерируй пробную тренировку для нового пользователя.\n")
	} else {
		b.WriteString("Сгенерируй персональную тренировку для пользователя.\n")
	}

	fmt.Fprintf(&b, "Цель: %s. Уровень: %s. Ограничения: %s. Место: %s.\n",
		orDefault(p.Goal, "не указано"), orDefault(p.Level, "не указано"),
		orDefault(p.HealthIssues, "нет"), orDefault(p.Location, "не указано"))
	fmt.Fprintf(&b, "Частота: %d раз в неделю. Рост: %d см. Вес: %d кг. Возраст: %d. Пол: %s.\n",
		p.WorkoutsPerWeek, p.Height, p.Weight, p.Age, orDefault(p.Gender, "не указано"))
	fmt.Fprintf(&b, "Ровно %d упражнений, нумерованный список \"1. Название — подходы x повторения\".\n", req.ExerciseCount)
	b.WriteString("Последний пункт всегда заминка или кардио.\n")

	if len(req.Exclude) > 0 {
		fmt.Fprintf(&b, "Не используй упражнения: %s.\n", strings.Join(req.Exclude, ", "))
	}

	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
