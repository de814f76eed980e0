package broadcast

const (
	msgProgress     = "Рассылка: отправлено %d из %d"
	msgFinished     = "Рассылка завершена. Успешно: %d, ошибок: %d"
	msgTestFinished = "Тестовая рассылка завершена. Успешно: %d, ошибок: %d"
	msgFailed       = "Ошибка при рассылке: %v"
)
