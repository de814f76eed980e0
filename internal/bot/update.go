package bot

import "context"

// Update is one inbound chat event, independent of the transport.
type Update struct {
	UpdateID     int
	TelegramID   int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	Text         string
	Command      string
	Args         string
	PhotoFileID  string
	CallbackID   string
	CallbackData string
}

func (u Update) Kind() string {
	switch {
	case u.CallbackID != "":
		return "callback"
	case u.Command != "":
		return "command"
	case u.PhotoFileID != "":
		return "photo"
	default:
		return "message"
	}
}

type Button struct {
	Text string
	Data string
	URL  string
}

// Reply is one outbound message. Keyboard is a persistent reply keyboard,
// Inline is attached to the message itself.
type Reply struct {
	ChatID         int64
	Text           string
	HTML           bool
	Keyboard       [][]string
	Inline         [][]Button
	RemoveKeyboard bool
}

type Messenger interface {
	Send(ctx context.Context, r Reply) error
	SendText(ctx context.Context, chatID int64, text string) error
	SendHTML(ctx context.Context, chatID int64, html string) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error
	FileURL(ctx context.Context, fileID string) (string, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// UpdateHandler consumes updates from a transport.
type UpdateHandler interface {
	Handle(ctx context.Context, u Update)
}
