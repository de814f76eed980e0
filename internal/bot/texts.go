package bot

import "fitness-bot/internal/session"

const (
	BtnNewWorkout = "Получить новую тренировку"
	BtnCalories   = "Подсчет калорий"
	BtnHistory    = "История"
	BtnBroadcast  = "Пуш-рассылка"
)

const (
	cbOnboardingConfirm = "onboarding:confirm"
	cbOnboardingRedo    = "onboarding:redo"
	cbWorkoutAccept     = "workout:accept"
	cbWorkoutRegen      = "workout:regen"
	cbBroadcastAudience = "broadcast:audience:"
	cbBroadcastConfirm  = "broadcast:confirm"
	cbBroadcastCancel   = "broadcast:cancel"
	cbPay               = "pay"
)

const (
	msgWelcomeNew = "Привет! Я фитнес-бот. Помогу тебе с тренировками, питанием и мотивацией!\n\n" +
		"Давай начнем с небольшой анкеты."

	msgWelcomeBack    = "Добро пожаловать! У тебя активна подписка. Используй меню ниже:"
	msgProfileRestart = "Давай заполним анкету заново."

	msgHelp = "Я фитнес-бот: составляю тренировки, считаю калории по фото и веду историю.\n\n" +
		"/start - начать\n/profile - заполнить анкету заново\n/pay - оплатить подписку\n" +
		"/status - статус подписки\n/autopay_off - отключить автопродление\n/cancel - отменить текущее действие"

	msgUnknownCommand   = "Неизвестная команда. Используй /help."
	msgCancelled        = "Действие отменено."
	msgUseMenu          = "Используй меню ниже."
	msgUseButtons       = "Пожалуйста, выберите вариант с помощью кнопок ниже."
	msgGenericError     = "Произошла ошибка. Попробуйте позже."
	msgGenerationFailed = "Не удалось получить ответ от ИИ. Попробуйте позже."
	msgBusy             = "Предыдущий запрос ещё обрабатывается, подождите..."
	msgStale            = "Это действие больше недоступно."
	msgNoAccess         = "Нет доступа."

	msgEnterPositiveInt = "Пожалуйста, введите целое положительное число"
	msgNumberRange      = "Допустимые значения: от %d до %d."
	msgEmptyAnswer      = "Пожалуйста, ответьте текстом."

	msgConfirmProfile = "Проверь анкету:\n\n" +
		"Цель: %s\nУровень: %s\nОграничения: %s\nМесто: %s\nТренировок в неделю: %d\n" +
		"Рост: %d см\nВес: %d кг\nВозраст: %d\nПол: %s\n\nВсё верно?"

	msgProfileSaved = "Анкета сохранена."

	msgTrialWorkout = "Спасибо! Вот твоя первая бесплатная тренировка:\n\n%s\n\n" +
		"Если хочешь получить доступ к персональным тренировкам и другим функциям, оформи подписку! Стоимость подписки: %s."

	msgPersonalWorkout = "Вот твоя персональная тренировка:\n\n%s"
	msgTrialUsed       = "Бесплатная тренировка уже использована."

	msgGenerating       = "Команда принята, обрабатываю..."
	msgWorkoutReview    = "%s\n\nПодходит тренировка?"
	msgWorkoutSaved     = "Тренировка сохранена. Удачи!"
	msgRegenFeedback    = "Не подходит. Предложи другие упражнения."
	msgSendPhoto        = "Пожалуйста, отправь фото еды."
	msgSendPhotoOnly    = "Пожалуйста, отправь именно фото еды."
	msgAnalyzingPhoto   = "Команда принята, анализирую фото..."
	msgMealRejected     = "Не удалось распознать еду на фото. Запись не сохранена."
	msgMealSaved        = "Описание: %s\nКалории: %s"
	msgPhotoOutsideFlow = "Чтобы посчитать калории, нажми «" + BtnCalories + "»."

	msgThinking      = "Команда принята, думаю..."
	msgMealLogged    = "Записал приём пищи: %s (%s ккал)"
	msgWorkoutLogged = "Записал тренировку: %s"

	msgHistoryCaption = "Ваша история в формате Excel"
	msgHistoryEmpty   = "История пока пуста."
	msgHistoryFailed  = "Произошла ошибка при формировании Excel-файла. Попробуйте позже."

	msgPayRequired     = "Эта функция доступна только после оплаты подписки (стоимость %s). Используй /pay для получения доступа."
	msgPayLink         = "Для оплаты подписки (стоимость %s) нажмите на кнопку ниже. Доступ откроется автоматически после оплаты."
	msgPayButton       = "Оплатить"
	msgPayFailed       = "Ошибка при создании платежа. Попробуйте позже."
	msgPaymentPending  = "Спасибо за оплату! Подписка активируется, как только платёж будет подтверждён."
	msgPaymentCanceled = "Оплата была отменена. Вы можете попробовать снова командой /pay."
	msgAutopayOff      = "Автопродление отключено. Сохранённая карта удалена."
	msgAutopayNone     = "Автопродление не подключено."
	msgConfirmUsage    = "Используй: /confirm_payment <telegram_id>"
	msgConfirmDone     = "Оплата подтверждена для пользователя %d до %s."
	msgConfirmFailed   = "Пользователь не найден."
	msgStatusTrial     = "Подписка не оформлена. Используй /pay для получения доступа."
	msgStatusActive    = "Подписка активна до %s."
	msgStatusExpired   = "Подписка истекла. Используй /pay для продления."
	msgStatusAutopay   = "\nАвтопродление включено."

	msgBroadcastAskText   = "Введите текст пуш-уведомления:"
	msgBroadcastAudience  = "Кому отправить уведомление?"
	msgBroadcastConfirm   = "Текст: %s\nКому: %s%s\n\nПодтвердить рассылку?"
	msgBroadcastTestNote  = "\n\n<b>Внимание: рассылка будет отправлена только администраторам!</b>"
	msgBroadcastStarted   = "Рассылка начата... (вы получите отчёт по завершении)"
	msgBroadcastRunning   = "Рассылка уже выполняется, подождите..."
	msgBroadcastCancelled = "Рассылка отменена."

	btnAccept      = "Да, всё верно"
	btnRedo        = "Нет, изменить"
	btnTakeWorkout = "Беру"
	btnRegenerate  = "Другую тренировку"
	btnConfirm     = "Подтвердить"
	btnCancel      = "Отмена"
)

var onboardingQuestions = map[string]string{
	session.StepGoal:            "1. Какая у тебя цель? (Похудеть/Набрать массу/Поддерживать форму)",
	session.StepLevel:           "2. Какой у тебя уровень подготовки? (Новичок/Средний/Продвинутый)",
	session.StepHealth:          "3. Есть ли ограничения по здоровью?",
	session.StepLocation:        "4. Где планируешь тренироваться? (Дом/Зал/Улица)",
	session.StepWeeklyFrequency: "5. Сколько раз в неделю хочешь тренироваться?",
	session.StepHeight:          "6. Рост (см)?",
	session.StepWeight:          "7. Вес (кг)?",
	session.StepAge:             "8. Возраст?",
	session.StepGender:          "9. Пол (М/Ж)?",
}

var numericHints = map[string]string{
	session.StepWeeklyFrequency: " (сколько раз в неделю хотите тренироваться)?",
	session.StepHeight:          " (ваш рост в см)?",
	session.StepWeight:          " (ваш вес в кг)?",
	session.StepAge:             " (ваш возраст)?",
}

var audienceTitles = map[string]string{
	"all":         "Всем пользователям",
	"paid":        "Только платным",
	"free":        "Только бесплатным",
	"test_admins": "Тестовая рассылка (только админам)",
}
