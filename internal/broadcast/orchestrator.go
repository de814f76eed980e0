package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"
)

var ErrAlreadyRunning = errors.New("broadcast already running")

type Recipients interface {
	ListAccountsByAudience(ctx context.Context, audience models.Audience) ([]models.Account, error)
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendHTML(ctx context.Context, chatID int64, html string) error
}

type Options struct {
	RatePerSecond float64
	ProgressEvery int
}

// Orchestrator fans announcements out to an audience, one job per admin at a time.
type Orchestrator struct {
	recipients Recipients
	sender     Sender
	metrics    metrics.Recorder
	log        *logger.Logger
	policy     *bluemonday.Policy
	limiter    *rate.Limiter
	every      int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[int64]*Job
	wg      sync.WaitGroup
}

func NewOrchestrator(recipients Recipients, sender Sender, rec metrics.Recorder, log *logger.Logger, opts Options) *Orchestrator {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		recipients: recipients,
		sender:     sender,
		metrics:    rec,
		log:        log.Named("broadcast"),
		policy:     telegramPolicy(),
		limiter:    rate.NewLimiter(limit, 1),
		every:      every,
		ctx:        ctx,
		cancel:     cancel,
		running:    make(map[int64]*Job),
	}
}

// telegramPolicy keeps only the HTML subset Telegram accepts in messages.
func telegramPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "tg")
	p.RequireParseableURLs(true)
	return p
}

// Sanitize returns text safe to send with HTML parse mode.
func (o *Orchestrator) Sanitize(text string) string {
	return o.policy.Sanitize(text)
}

// Running reports whether the admin has a job in flight.
func (o *Orchestrator) Running(adminID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[adminID]
	return ok
}

// Start launches a detached job. The caller's request context is not used.
func (o *Orchestrator) Start(adminID int64, text string, audience models.Audience) (*Job, error) {
	o.mu.Lock()
	if _, ok := o.running[adminID]; ok {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	job := &Job{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		Audience:  audience,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	o.running[adminID] = job
	o.wg.Add(1)
	o.mu.Unlock()

	o.log.Infow("Broadcast started", "job", job.ID, "admin_id", adminID, "audience", audience)
	go o.run(job, o.Sanitize(text))
	return job, nil
}

func (o *Orchestrator) run(job *Job, html string) {
	defer o.wg.Done()
	defer o.finish(job)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			o.abort(job, err)
		}
	}()

	ctx := o.ctx
	accounts, err := o.recipients.ListAccountsByAudience(ctx, job.Audience)
	if err != nil {
		o.abort(job, err)
		return
	}
	job.setTotal(len(accounts))

	for i, a := range accounts {
		if err := o.limiter.Wait(ctx); err != nil {
			o.abort(job, err)
			return
		}

		if err := o.sender.SendHTML(ctx, a.TelegramID, html); err != nil {
			job.tally(false)
			o.metrics.RecordBroadcastMessage(metrics.ResultError)
			o.log.Warnw("Broadcast delivery failed", "job", job.ID, "telegram_id", a.TelegramID, "username", a.Username, "error", err)
		} else {
			job.tally(true)
			o.metrics.RecordBroadcastMessage(metrics.ResultOK)
		}

		if (i+1)%o.every == 0 && i+1 < len(accounts) {
			o.report(job.AdminID, fmt.Sprintf(msgProgress, i+1, len(accounts)))
		}
	}

	snap := job.Snapshot()
	summary := msgFinished
	if job.Audience == models.AudienceTestAdmins {
		summary = msgTestFinished
	}
	o.report(job.AdminID, fmt.Sprintf(summary, snap.Sent, snap.Failed))
	o.log.Infow("Broadcast finished", "job", job.ID, "total", snap.Total, "sent", snap.Sent, "failed", snap.Failed,
		"elapsed", time.Since(job.StartedAt))
}

func (o *Orchestrator) abort(job *Job, err error) {
	job.setErr(err)
	o.log.Errorw("Broadcast aborted", "job", job.ID, "admin_id", job.AdminID, "error", err)
	o.report(job.AdminID, fmt.Sprintf(msgFailed, err))
}

func (o *Orchestrator) finish(job *Job) {
	o.mu.Lock()
	delete(o.running, job.AdminID)
	o.mu.Unlock()
	close(job.done)
}

func (o *Orchestrator) report(adminID int64, text string) {
	// The report must go out even when shutdown cancelled the job context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.sender.SendText(ctx, adminID, text); err != nil {
		o.log.Warnw("Failed to report broadcast status", "admin_id", adminID, "error", err)
	}
}

// Wait blocks until every running job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown waits for running jobs; when ctx expires first they are cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}
