package bot

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"fitness-bot/internal/broadcast"
	"fitness-bot/internal/gpt"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/session"
	"fitness-bot/internal/subscription"
	"fitness-bot/pkg/logger"
)

type Store interface {
	GetAccount(ctx context.Context, telegramID int64) (*models.Account, error)
	CreateAccount(ctx context.Context, a models.Account) (*models.Account, error)
	UpdateProfile(ctx context.Context, telegramID int64, p models.Profile) (*models.Account, error)
	MarkActive(ctx context.Context, telegramID int64, now time.Time) error
	AppendWorkout(ctx context.Context, w models.WorkoutRecord) (*models.WorkoutRecord, error)
	AppendMeal(ctx context.Context, m models.MealRecord) (*models.MealRecord, error)
	ListRecentWorkouts(ctx context.Context, accountID int64, limit int) ([]models.WorkoutRecord, error)
	ListRecentMeals(ctx context.Context, accountID int64, limit int) ([]models.MealRecord, error)
	HasTrialWorkout(ctx context.Context, accountID int64) (bool, error)
}

type Generator interface {
	GenerateText(ctx context.Context, systemContext, userMessage string) (string, error)
	GenerateWorkoutPlan(ctx context.Context, req gpt.PlanRequest) (string, error)
	AnalyzePhoto(ctx context.Context, photoURL string) (string, error)
}

type Biller interface {
	CreatePaymentLink(ctx context.Context, account *models.Account, returnURL string) (*payment.Link, error)
}

type Subscriptions interface {
	ConfirmManual(ctx context.Context, telegramID int64) (time.Time, error)
	RemoveInstrument(ctx context.Context, telegramID int64) error
}

type Broadcaster interface {
	Start(adminID int64, text string, audience models.Audience) (*broadcast.Job, error)
	Running(adminID int64) bool
}

type Options struct {
	AdminIDs       []int64
	TrialDays      int
	Amount         int64
	Currency       string
	MinExercises   int
	MaxExercises   int
	RecentWorkouts int
	RegenHistory   int
	HistoryLimit   int
	// ReturnURL is where the checkout page sends the user back, usually https://t.me/<bot>.
	ReturnURL string
}

// Dialog drives the per-account conversation. Handle is safe for concurrent use;
// updates of one account are serialized only around generation work via the busy flag.
type Dialog struct {
	store       Store
	sessions    session.Store
	gen         Generator
	biller      Biller
	subs        Subscriptions
	broadcaster Broadcaster
	messenger   Messenger
	metrics     metrics.Recorder
	log         *logger.Logger
	opts        Options

	now   func() time.Time
	rngMu sync.Mutex
	rng   *rand.Rand
}

type Deps struct {
	Store         Store
	Sessions      session.Store
	Generator     Generator
	Biller        Biller
	Subscriptions Subscriptions
	Broadcaster   Broadcaster
	Messenger     Messenger
	Metrics       metrics.Recorder
	Logger        *logger.Logger
}

func NewDialog(deps Deps, opts Options) *Dialog {
	if opts.MinExercises <= 0 {
		opts.MinExercises = 5
	}
	if opts.MaxExercises < opts.MinExercises {
		opts.MaxExercises = opts.MinExercises
	}
	if opts.RecentWorkouts <= 0 {
		opts.RecentWorkouts = 3
	}
	if opts.RegenHistory <= 0 {
		opts.RegenHistory = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Dialog{
		store:       deps.Store,
		sessions:    deps.Sessions,
		gen:         deps.Generator,
		biller:      deps.Biller,
		subs:        deps.Subscriptions,
		broadcaster: deps.Broadcaster,
		messenger:   deps.Messenger,
		metrics:     rec,
		log:         log,
		opts:        opts,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handle processes one update to completion.
func (d *Dialog) Handle(ctx context.Context, u Update) {
	// Recover from panics so one update cannot kill the worker
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("Recovered from panic while handling update",
				"telegram_id", u.TelegramID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		}
	}()

	d.metrics.RecordUpdate(u.Kind())

	// Stop the client spinner before any slow work
	if u.CallbackID != "" {
		if err := d.messenger.AnswerCallback(ctx, u.CallbackID, ""); err != nil {
			d.log.Warnw("Failed to answer callback", "telegram_id", u.TelegramID, "error", err)
		}
	}

	account, created, err := d.ensureAccount(ctx, u)
	if err != nil {
		d.log.Errorw("Failed to load account", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}
	if err := d.store.MarkActive(ctx, u.TelegramID, d.now()); err != nil {
		d.log.Warnw("Failed to mark activity", "telegram_id", u.TelegramID, "error", err)
	}

	// New users go straight to the questionnaire
	if created {
		d.startOnboarding(ctx, u, msgWelcomeNew)
		return
	}

	sess, err := d.sessions.Get(ctx, u.TelegramID)
	if err != nil {
		d.log.Errorw("Failed to load session", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}

	// Callbacks first, then commands, then menu buttons, then free input
	switch {
	case u.CallbackData != "":
		d.handleCallback(ctx, u, account, sess)
	case u.Command != "":
		d.handleCommand(ctx, u, account)
	case isMenuButton(u.Text):
		d.handleMenu(ctx, u, account)
	default:
		d.handleInput(ctx, u, account, sess)
	}
}

func (d *Dialog) ensureAccount(ctx context.Context, u Update) (*models.Account, bool, error) {
	account, err := d.store.GetAccount(ctx, u.TelegramID)
	if err != nil {
		return nil, false, err
	}
	if account != nil {
		return account, false, nil
	}

	fresh := models.Account{
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       models.RoleUser,
	}
	if d.isBootstrapAdmin(u.TelegramID) {
		fresh.Role = models.RoleAdmin
	}
	if d.opts.TrialDays > 0 {
		until := d.now().AddDate(0, 0, d.opts.TrialDays)
		fresh.IsPaid = true
		fresh.PaidUntil = &until
	}

	account, err = d.store.CreateAccount(ctx, fresh)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, fmt.Errorf("account %d not found after create", u.TelegramID)
	}
	d.log.Infow("Account created", "telegram_id", u.TelegramID, "role", account.Role)
	return account, true, nil
}

func (d *Dialog) isBootstrapAdmin(telegramID int64) bool {
	for _, id := range d.opts.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (d *Dialog) isAdmin(account *models.Account) bool {
	return account.IsAdmin() || d.isBootstrapAdmin(account.TelegramID)
}

func (d *Dialog) handleInput(ctx context.Context, u Update, account *models.Account, sess *session.Session) {
	switch sess.State {
	case session.StateOnboarding:
		d.onboardingAnswer(ctx, u, sess)
	case session.StateWorkoutReview:
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgUseButtons, Inline: reviewKeyboard()})
	case session.StateCalorieCapture:
		if u.PhotoFileID == "" {
			d.send(ctx, Reply{ChatID: u.ChatID, Text: msgSendPhotoOnly})
			return
		}
		d.capturePhoto(ctx, u, account)
	case session.StateBroadcastCompose:
		d.broadcastInput(ctx, u, account, sess)
	default:
		// Idle: photos and blank text get the menu, anything else goes to the assistant
		switch {
		case u.PhotoFileID != "":
			d.send(ctx, d.menuReply(u.ChatID, account, msgPhotoOutsideFlow))
		case strings.TrimSpace(u.Text) == "":
			d.send(ctx, d.menuReply(u.ChatID, account, msgUseMenu))
		default:
			d.classify(ctx, u, account)
		}
	}
}

func (d *Dialog) handleMenu(ctx context.Context, u Update, account *models.Account) {
	// A generation in flight still owns the session
	if d.refuseBusy(ctx, u) {
		return
	}
	d.clearSession(ctx, u.TelegramID)

	switch u.Text {
	case BtnNewWorkout:
		d.newWorkout(ctx, u, account)
	case BtnCalories:
		d.startCalorieCapture(ctx, u, account)
	case BtnHistory:
		d.sendHistory(ctx, u, account)
	case BtnBroadcast:
		d.startBroadcast(ctx, u, account)
	}
}

func (d *Dialog) handleCallback(ctx context.Context, u Update, account *models.Account, sess *session.Session) {
	data := u.CallbackData
	switch {
	case data == cbOnboardingConfirm:
		if !sess.In(session.StateOnboarding, session.StepConfirm) {
			d.stale(ctx, u)
			return
		}
		d.guard(ctx, u, func() { d.confirmOnboarding(ctx, u, account) })
	case data == cbOnboardingRedo:
		if !sess.In(session.StateOnboarding, session.StepConfirm) {
			d.stale(ctx, u)
			return
		}
		if d.refuseBusy(ctx, u) {
			return
		}
		d.startOnboarding(ctx, u, "")
	case data == cbWorkoutAccept:
		if sess.State != session.StateWorkoutReview {
			d.stale(ctx, u)
			return
		}
		d.guard(ctx, u, func() { d.acceptWorkout(ctx, u, account) })
	case data == cbWorkoutRegen:
		if sess.State != session.StateWorkoutReview {
			d.stale(ctx, u)
			return
		}
		d.guard(ctx, u, func() { d.regenerateWorkout(ctx, u, account) })
	case strings.HasPrefix(data, cbBroadcastAudience):
		d.chooseAudience(ctx, u, account, sess, strings.TrimPrefix(data, cbBroadcastAudience))
	case data == cbBroadcastConfirm:
		d.confirmBroadcast(ctx, u, account, sess)
	case data == cbBroadcastCancel:
		d.cancelBroadcast(ctx, u, account, sess)
	case data == cbPay:
		d.pay(ctx, u, account)
	default:
		d.stale(ctx, u)
	}
}

// guard runs fn while holding the account's busy flag and refuses the update
// if another generation is already in flight.
func (d *Dialog) guard(ctx context.Context, u Update, fn func()) {
	ok, err := d.sessions.TryAcquire(ctx, u.TelegramID)
	if err != nil {
		d.log.Errorw("Failed to acquire busy flag", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return
	}
	if !ok {
		d.metrics.RecordBusyRefusal()
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBusy})
		return
	}
	defer func() {
		if err := d.sessions.Release(context.WithoutCancel(ctx), u.TelegramID); err != nil {
			d.log.Errorw("Failed to release busy flag", "telegram_id", u.TelegramID, "error", err)
		}
	}()
	fn()
}

// refuseBusy answers with the busy notice and reports true while a generation
// for the account is in flight. Flows that replace the session check it first.
func (d *Dialog) refuseBusy(ctx context.Context, u Update) bool {
	busy, err := d.sessions.Busy(ctx, u.TelegramID)
	if err != nil {
		d.log.Errorw("Failed to check busy flag", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return true
	}
	if busy {
		d.metrics.RecordBusyRefusal()
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgBusy})
	}
	return busy
}

// reload fetches the session again after the busy flag is held and checks it is still in state.
func (d *Dialog) reload(ctx context.Context, u Update, state session.State) (*session.Session, bool) {
	sess, err := d.sessions.Get(ctx, u.TelegramID)
	if err != nil {
		d.log.Errorw("Failed to load session", "telegram_id", u.TelegramID, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return nil, false
	}
	if sess.State != state {
		d.stale(ctx, u)
		return nil, false
	}
	return sess, true
}

func (d *Dialog) clearSession(ctx context.Context, telegramID int64) {
	if err := d.sessions.Clear(ctx, telegramID); err != nil {
		d.log.Warnw("Failed to clear session", "telegram_id", telegramID, "error", err)
	}
}

func (d *Dialog) saveSession(ctx context.Context, u Update, sess *session.Session) bool {
	sess.TelegramID = u.TelegramID
	sess.UpdatedAt = d.now()
	if err := d.sessions.Save(ctx, sess); err != nil {
		d.log.Errorw("Failed to save session", "telegram_id", u.TelegramID, "state", sess.State, "error", err)
		d.send(ctx, Reply{ChatID: u.ChatID, Text: msgGenericError})
		return false
	}
	return true
}

func (d *Dialog) stale(ctx context.Context, u Update) {
	d.send(ctx, Reply{ChatID: u.ChatID, Text: msgStale})
}

func (d *Dialog) send(ctx context.Context, r Reply) {
	if err := d.messenger.Send(ctx, r); err != nil {
		d.log.Errorw("Failed to send message", "chat_id", r.ChatID, "error", err)
	}
}

func (d *Dialog) menuReply(chatID int64, account *models.Account, text string) Reply {
	rows := [][]string{{BtnNewWorkout}, {BtnCalories, BtnHistory}}
	if d.isAdmin(account) {
		rows = append(rows, []string{BtnBroadcast})
	}
	return Reply{ChatID: chatID, Text: text, Keyboard: rows}
}

func (d *Dialog) active(account *models.Account) bool {
	return subscription.IsActive(account, d.now())
}

// requireActive sends the pay prompt and reports false when the subscription is not active.
func (d *Dialog) requireActive(ctx context.Context, u Update, account *models.Account) bool {
	if d.active(account) {
		return true
	}
	d.send(ctx, Reply{
		ChatID: u.ChatID,
		Text:   fmt.Sprintf(msgPayRequired, d.price()),
		Inline: [][]Button{{{Text: msgPayButton, Data: cbPay}}},
	})
	return false
}

func (d *Dialog) price() string {
	return formatPrice(d.opts.Amount, d.opts.Currency)
}

func (d *Dialog) pickExerciseCount() int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return gpt.PickExerciseCount(d.opts.MinExercises, d.opts.MaxExercises, d.rng)
}

func (d *Dialog) recordGeneration(op string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	d.metrics.RecordGeneration(op, result)
}

func isMenuButton(text string) bool {
	switch text {
	case BtnNewWorkout, BtnCalories, BtnHistory, BtnBroadcast:
		return true
	}
	return false
}

// formatPrice renders an amount in minor units.
func formatPrice(amount int64, currency string) string {
	switch strings.ToLower(currency) {
	case "rub", "":
		if amount%100 == 0 {
			return fmt.Sprintf("%d₽", amount/100)
		}
		return fmt.Sprintf("%.2f₽", float64(amount)/100)
	default:
		return fmt.Sprintf("%.2f %s", float64(amount)/100, strings.ToUpper(currency))
	}
}
