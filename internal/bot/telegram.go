package bot

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"fitness-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength is Telegram's limit on message text, in characters.
const maxMessageLength = 4096

func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// ReturnURL is the deep link the checkout page sends users back to.
func ReturnURL(api *tgbotapi.BotAPI) string {
	return fmt.Sprintf("https://t.me/%s", api.Self.UserName)
}

// TelegramBot feeds Telegram updates to a handler, by long polling or from webhook pushes.
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	handler UpdateHandler
	logger  *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	polling bool
}

func NewTelegramBot(api *tgbotapi.BotAPI, handler UpdateHandler, log *logger.Logger) *TelegramBot {
	ctx, cancel := context.WithCancel(context.Background())
	log = log.Named("telegram")
	log.Infow("Authorized on Telegram", "username", api.Self.UserName)

	return &TelegramBot{
		bot:     api,
		handler: handler,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	t.logger.Info("Removing any existing webhook")
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	t.logger.Info("Webhook removed, starting polling for updates")

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := t.bot.GetUpdatesChan(updateConfig)
	t.polling = true

	go t.handleUpdates(ctx, updates)

	t.logger.Info("Bot started successfully, listening for updates")
	return nil
}

// RegisterWebhook points Telegram at webhookURL; updates then arrive through HandleUpdate.
func (t *TelegramBot) RegisterWebhook(webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	t.logger.Infow("Webhook registered", "url", webhookURL)
	return nil
}

func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.dispatch(update)
		}
	}
}

// dispatch handles each update in its own goroutine.
func (t *TelegramBot) dispatch(update tgbotapi.Update) {
	u, ok := toUpdate(update)
	if !ok {
		t.logger.Debugw("Ignoring unsupported update", "update_id", update.UpdateID)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Errorw("Recovered from panic in update handler", "update_id", u.UpdateID, "panic", r)
			}
		}()
		t.handler.Handle(t.ctx, u)
	}()
}

func toUpdate(update tgbotapi.Update) (Update, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		cq := update.CallbackQuery
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return Update{
			UpdateID:     update.UpdateID,
			TelegramID:   cq.From.ID,
			ChatID:       chatID,
			Username:     cq.From.UserName,
			FirstName:    cq.From.FirstName,
			LastName:     cq.From.LastName,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}, true

	case update.Message != nil && update.Message.From != nil && update.Message.Chat != nil:
		m := update.Message
		u := Update{
			UpdateID:   update.UpdateID,
			TelegramID: m.From.ID,
			ChatID:     m.Chat.ID,
			Username:   m.From.UserName,
			FirstName:  m.From.FirstName,
			LastName:   m.From.LastName,
			Text:       m.Text,
		}
		if m.IsCommand() {
			u.Command = m.Command()
			u.Args = m.CommandArguments()
		}
		if len(m.Photo) > 0 {
			// the last size is the largest
			u.PhotoFileID = m.Photo[len(m.Photo)-1].FileID
		}
		return u, true
	}
	return Update{}, false
}

// Stop halts polling and waits for in-flight updates until ctx expires.
func (t *TelegramBot) Stop(ctx context.Context) error {
	t.logger.Info("Stopping Telegram bot")
	if t.polling {
		t.bot.StopReceivingUpdates()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		return ctx.Err()
	}
}

// TelegramMessenger sends replies through the Bot API.
type TelegramMessenger struct {
	bot    *tgbotapi.BotAPI
	logger *logger.Logger
}

func NewTelegramMessenger(api *tgbotapi.BotAPI, log *logger.Logger) *TelegramMessenger {
	return &TelegramMessenger{bot: api, logger: log.Named("messenger")}
}

// Send delivers r, splitting long text into several messages. Markup goes on the last one.
func (m *TelegramMessenger) Send(ctx context.Context, r Reply) error {
	chunks := splitMessage(r.Text, maxMessageLength)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(r.ChatID, chunk)
		if r.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
		}
		if i == len(chunks)-1 {
			if markup := replyMarkup(r); markup != nil {
				msg.ReplyMarkup = markup
			}
		}

		if _, err := m.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send message to %d: %w", r.ChatID, err)
		}
	}
	return nil
}

func (m *TelegramMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.Send(ctx, Reply{ChatID: chatID, Text: text})
}

func (m *TelegramMessenger) SendHTML(ctx context.Context, chatID int64, html string) error {
	return m.Send(ctx, Reply{ChatID: chatID, Text: html, HTML: true})
}

func (m *TelegramMessenger) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := m.bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send document to %d: %w", chatID, err)
	}
	return nil
}

func (m *TelegramMessenger) FileURL(ctx context.Context, fileID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	url, err := m.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file URL: %w", err)
	}
	return url, nil
}

func (m *TelegramMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func replyMarkup(r Reply) interface{} {
	switch {
	case len(r.Inline) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(r.Inline))
		for _, row := range r.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
				}
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)

	case len(r.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(r.Keyboard))
		for _, row := range r.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.ResizeKeyboard = true
		return keyboard

	case r.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit characters, preferring line breaks.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
