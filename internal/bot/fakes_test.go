package bot

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fitness-bot/internal/broadcast"
	"fitness-bot/internal/gpt"
	"fitness-bot/internal/models"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/session"
	"fitness-bot/internal/subscription"
	"fitness-bot/pkg/logger"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	workouts []models.WorkoutRecord
	meals    []models.MealRecord
	nextID   int64
}

func newFakeStore(accounts ...models.Account) *fakeStore {
	s := &fakeStore{accounts: map[int64]*models.Account{}}
	for i := range accounts {
		a := accounts[i]
		a.ID = a.TelegramID
		s.accounts[a.TelegramID] = &a
	}
	return s
}

func (s *fakeStore) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (s *fakeStore) CreateAccount(_ context.Context, a models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.TelegramID]; !ok {
		a.ID = a.TelegramID
		s.accounts[a.TelegramID] = &a
	}
	c := *s.accounts[a.TelegramID]
	return &c, nil
}

func (s *fakeStore) UpdateProfile(_ context.Context, id int64, p models.Profile) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	a.Profile = p
	c := *a
	return &c, nil
}

func (s *fakeStore) MarkActive(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.LastActiveAt = &now
	}
	return nil
}

func (s *fakeStore) AppendWorkout(_ context.Context, w models.WorkoutRecord) (*models.WorkoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w.ID = s.nextID
	w.CreatedAt = testNow.Add(time.Duration(s.nextID) * time.Second)
	s.workouts = append(s.workouts, w)
	return &w, nil
}

func (s *fakeStore) AppendMeal(_ context.Context, m models.MealRecord) (*models.MealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = testNow.Add(time.Duration(s.nextID) * time.Second)
	s.meals = append(s.meals, m)
	return &m, nil
}

func (s *fakeStore) ListRecentWorkouts(_ context.Context, accountID int64, limit int) ([]models.WorkoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkoutRecord
	for _, w := range s.workouts {
		if w.AccountID == accountID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ListRecentMeals(_ context.Context, accountID int64, limit int) ([]models.MealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MealRecord
	for _, m := range s.meals {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) HasTrialWorkout(_ context.Context, accountID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workouts {
		if w.AccountID == accountID && w.Type == models.WorkoutFreeTrial {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) workoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workouts)
}

func (s *fakeStore) mealList() []models.MealRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MealRecord(nil), s.meals...)
}

type fakeGenerator struct {
	mu       sync.Mutex
	plans    []string
	planErr  error
	text     string
	textErr  error
	photo    string
	photoErr error
	requests []gpt.PlanRequest
	texts    int
	// planPanic, when set, makes plan generation panic with it.
	planPanic any

	// gate, when set, blocks plan generation until closed; started receives on entry.
	gate    chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts++
	return g.text, g.textErr
}

func (g *fakeGenerator) GenerateWorkoutPlan(ctx context.Context, req gpt.PlanRequest) (string, error) {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.planPanic != nil {
		panic(g.planPanic)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.planErr != nil {
		return "", g.planErr
	}
	if len(g.plans) == 0 {
		return "1. Отжимания\n2. Приседания", nil
	}
	plan := g.plans[0]
	g.plans = g.plans[1:]
	return plan, nil
}

func (g *fakeGenerator) AnalyzePhoto(_ context.Context, _ string) (string, error) {
	return g.photo, g.photoErr
}

func (g *fakeGenerator) planRequests() []gpt.PlanRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gpt.PlanRequest(nil), g.requests...)
}

type sentDocument struct {
	chatID  int64
	name    string
	data    []byte
	caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	replies   []Reply
	documents []sentDocument
	answered  []string
}

func (m *fakeMessenger) Send(_ context.Context, r Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
	return nil
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.Send(ctx, Reply{ChatID: chatID, Text: text})
}

func (m *fakeMessenger) SendHTML(ctx context.Context, chatID int64, html string) error {
	return m.Send(ctx, Reply{ChatID: chatID, Text: html, HTML: true})
}

func (m *fakeMessenger) SendDocument(_ context.Context, chatID int64, name string, data []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, sentDocument{chatID: chatID, name: name, data: data, caption: caption})
	return nil
}

func (m *fakeMessenger) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, id)
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.replies))
	for _, r := range m.replies {
		out = append(out, r.Text)
	}
	return out
}

func (m *fakeMessenger) last() Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return Reply{}
	}
	return m.replies[len(m.replies)-1]
}

func (m *fakeMessenger) contains(substr string) bool {
	for _, text := range m.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

type fakeBiller struct {
	err error
}

func (b *fakeBiller) CreatePaymentLink(_ context.Context, a *models.Account, _ string) (*payment.Link, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &payment.Link{URL: "https://checkout.example/" + a.Username, PaymentID: "cs_test"}, nil
}

type fakeSubscriptions struct {
	mu        sync.Mutex
	confirmed []int64
	removed   []int64
}

func (s *fakeSubscriptions) ConfirmManual(_ context.Context, id int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 404 {
		return time.Time{}, subscription.ErrUnknownAccount
	}
	s.confirmed = append(s.confirmed, id)
	return testNow.Add(30 * 24 * time.Hour), nil
}

func (s *fakeSubscriptions) RemoveInstrument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	return nil
}

type startedBroadcast struct {
	adminID  int64
	text     string
	audience models.Audience
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	running bool
	started []startedBroadcast
}

func (b *fakeBroadcaster) Start(adminID int64, text string, audience models.Audience) (*broadcast.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, broadcast.ErrAlreadyRunning
	}
	if audience == "" {
		return nil, errors.New("empty audience")
	}
	b.started = append(b.started, startedBroadcast{adminID: adminID, text: text, audience: audience})
	return &broadcast.Job{ID: "job-1", AdminID: adminID, Audience: audience}, nil
}

func (b *fakeBroadcaster) Running(int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

type countingRecorder struct {
	busy        atomic.Int64
	generations atomic.Int64
}

func (r *countingRecorder) RecordUpdate(string) {}
func (r *countingRecorder) RecordGeneration(string, string) { r.generations.Add(1) }
func (r *countingRecorder) RecordBroadcastMessage(string) {}
func (r *countingRecorder) RecordSchedulerRun(string, string) {}
func (r *countingRecorder) RecordCharge(string) {}
func (r *countingRecorder) RecordBusyRefusal() { r.busy.Add(1) }

type harness struct {
	dialog      *Dialog
	store       *fakeStore
	sessions    *session.MemoryStore
	gen         *fakeGenerator
	messenger   *fakeMessenger
	biller      *fakeBiller
	subs        *fakeSubscriptions
	broadcaster *fakeBroadcaster
	metrics     *countingRecorder
}

func newHarness(t *testing.T, accounts ...models.Account) *harness {
	t.Helper()

	h := &harness{
		store:       newFakeStore(accounts...),
		sessions:    session.NewMemoryStore(),
		gen:         &fakeGenerator{},
		messenger:   &fakeMessenger{},
		biller:      &fakeBiller{},
		subs:        &fakeSubscriptions{},
		broadcaster: &fakeBroadcaster{},
		metrics:     &countingRecorder{},
	}
	h.dialog = NewDialog(Deps{
		Store:         h.store,
		Sessions:      h.sessions,
		Generator:     h.gen,
		Biller:        h.biller,
		Subscriptions: h.subs,
		Broadcaster:   h.broadcaster,
		Messenger:     h.messenger,
		Metrics:       h.metrics,
		Logger:        logger.NewNop(),
	}, Options{
		AdminIDs:     []int64{900},
		Amount:       80000,
		Currency:     "rub",
		MinExercises: 5,
		MaxExercises: 8,
		ReturnURL:    "https://t.me/fitness_test_bot",
	})
	h.dialog.now = func() time.Time { return testNow }
	h.dialog.rng = rand.New(rand.NewSource(1))
	return h
}

func (h *harness) text(id int64, text string) {
	h.dialog.Handle(context.Background(), Update{TelegramID: id, ChatID: id, Text: text})
}

func (h *harness) command(id int64, command, args string) {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	h.dialog.Handle(context.Background(), Update{TelegramID: id, ChatID: id, Text: text, Command: command, Args: args})
}

func (h *harness) callback(id int64, data string) {
	h.dialog.Handle(context.Background(), Update{TelegramID: id, ChatID: id, CallbackID: "cb-" + data, CallbackData: data})
}

func (h *harness) photo(id int64, fileID string) {
	h.dialog.Handle(context.Background(), Update{TelegramID: id, ChatID: id, PhotoFileID: fileID})
}

func (h *harness) session(t *testing.T, id int64) *session.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return s
}

func paidAccount(id int64) models.Account {
	until := testNow.Add(10 * 24 * time.Hour)
	return models.Account{
		TelegramID: id,
		Username:   "athlete",
		Role:       models.RoleUser,
		IsPaid:     true,
		PaidUntil:  &until,
		Profile:    completeProfile(),
	}
}

func completeProfile() models.Profile {
	return models.Profile{
		Goal: "Похудеть", Level: "Новичок", HealthIssues: "Нет", Location: "Дом",
		WorkoutsPerWeek: 3, Height: 180, Weight: 80, Age: 30, Gender: "М",
	}
}

func ptrFloat(v float64) *float64 { return &v }
