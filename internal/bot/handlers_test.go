package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fitness-bot/internal/payment"
	"fitness-bot/pkg/logger"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	event *payment.Event
	err   error
	got   string
}

func (p *fakeParser) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	p.got = string(payload)
	return p.event, p.err
}

type fakeConfirmer struct {
	events []*payment.Event
	err    error
}

func (c *fakeConfirmer) ConfirmPayment(_ context.Context, event *payment.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func postStripe(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookHandler(t *testing.T) {
	event := &payment.Event{PaymentID: "pi_1", Succeeded: true, TelegramID: 42}

	tests := []struct {
		name       string
		parser     *fakeParser
		confirmErr error
		signature  string
		wantStatus int
		wantEvents int
	}{
		{name: "missing signature", parser: &fakeParser{event: event}, wantStatus: http.StatusBadRequest},
		{name: "invalid signature", parser: &fakeParser{err: errors.New("bad sig")}, signature: "t=1,v1=x", wantStatus: http.StatusBadRequest},
		{name: "ignored event type", parser: &fakeParser{}, signature: "t=1,v1=x", wantStatus: http.StatusOK},
		{name: "payment applied", parser: &fakeParser{event: event}, signature: "t=1,v1=x", wantStatus: http.StatusOK, wantEvents: 1},
		{name: "apply failure asks for redelivery", parser: &fakeParser{event: event}, confirmErr: errors.New("db down"), signature: "t=1,v1=x", wantStatus: http.StatusInternalServerError, wantEvents: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := &fakeConfirmer{err: tt.confirmErr}
			h := NewStripeWebhookHandler(tt.parser, confirmer, logger.NewNop())

			rec := postStripe(h, `{"id":"evt_1"}`, tt.signature)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, confirmer.events, tt.wantEvents)
		})
	}
}

func TestStripeWebhookRejectsGet(t *testing.T) {
	h := NewStripeWebhookHandler(&fakeParser{}, &fakeConfirmer{}, logger.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/stripe", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recordingHandler) Handle(_ context.Context, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func TestTelegramWebhookHandler(t *testing.T) {
	handler := &recordingHandler{}
	tg := NewTelegramBot(&tgbotapi.BotAPI{}, handler, logger.NewNop())

	router := chi.NewRouter()
	router.Post("/webhook/telegram/{secret}", tg.WebhookHandler("s3cret"))

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":5,"type":"private"},"date":0,"text":"привет"}}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram/wrong", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram/s3cret", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tg.Stop(ctx))

	require.Len(t, handler.updates, 1)
	assert.Equal(t, int64(5), handler.updates[0].TelegramID)
	assert.Equal(t, "привет", handler.updates[0].Text)
}
