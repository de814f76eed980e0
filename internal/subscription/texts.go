package subscription

const dateLayout = "02.01.2006"

const (
	msgInactivityReminder = "Давно не было активности! Не забывай про тренировки и питание. Я всегда на связи 💪"
	msgChargeSucceeded    = "С вашей карты успешно списана оплата за подписку на месяц. Подписка активна до %s. Спасибо!"
	msgChargeFailed       = "Не удалось списать оплату за подписку. Попробуйте оплатить вручную с помощью /pay."
	msgPaymentConfirmed   = "Ваша подписка успешно оплачена! Доступ открыт до %s. Спасибо!"
)
