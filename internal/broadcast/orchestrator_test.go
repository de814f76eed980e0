package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecipients struct {
	accounts []models.Account
	err      error
	asked    []models.Audience
}

func (f *fakeRecipients) ListAccountsByAudience(_ context.Context, audience models.Audience) ([]models.Account, error) {
	f.asked = append(f.asked, audience)
	return f.accounts, f.err
}

type fakeSender struct {
	mu      sync.Mutex
	fail    map[int64]bool
	gate    chan struct{}
	html    map[int64]string
	reports []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[int64]bool{}, html: map[int64]string{}}
}

func (f *fakeSender) SendHTML(ctx context.Context, chatID int64, html string) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.html[chatID] = html
	return nil
}

func (f *fakeSender) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, text)
	return nil
}

func (f *fakeSender) Reports() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reports...)
}

func accounts(n int) []models.Account {
	out := make([]models.Account, n)
	for i := range out {
		out[i] = models.Account{TelegramID: int64(i + 1)}
	}
	return out
}

func newTestOrchestrator(r Recipients, s Sender, every int) *Orchestrator {
	return NewOrchestrator(r, s, metrics.Nop{}, logger.NewNop(), Options{ProgressEvery: every})
}

func TestBroadcastTally(t *testing.T) {
	for _, failures := range []int{0, 3, 10} {
		t.Run(fmt.Sprintf("failures=%d", failures), func(t *testing.T) {
			sender := newFakeSender()
			for i := 1; i <= failures; i++ {
				sender.fail[int64(i)] = true
			}
			o := newTestOrchestrator(&fakeRecipients{accounts: accounts(10)}, sender, 100)

			job, err := o.Start(1, "hello", models.AudienceAll)
			require.NoError(t, err)

			select {
			case <-job.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("broadcast did not finish")
			}

			snap := job.Snapshot()
			assert.Equal(t, 10, snap.Total)
			assert.Equal(t, 10-failures, snap.Sent)
			assert.Equal(t, failures, snap.Failed)
			assert.NoError(t, snap.Err)
			assert.Equal(t, []string{fmt.Sprintf(msgFinished, 10-failures, failures)}, sender.Reports())
			assert.False(t, o.Running(1))
		})
	}
}

func TestBroadcastProgressAndTestWording(t *testing.T) {
	sender := newFakeSender()
	recipients := &fakeRecipients{accounts: accounts(5)}
	o := newTestOrchestrator(recipients, sender, 2)

	_, err := o.Start(1, "hi", models.AudienceTestAdmins)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, []models.Audience{models.AudienceTestAdmins}, recipients.asked)
	assert.Equal(t, []string{
		fmt.Sprintf(msgProgress, 2, 5),
		fmt.Sprintf(msgProgress, 4, 5),
		fmt.Sprintf(msgTestFinished, 5, 0),
	}, sender.Reports())
}

func TestBroadcastRefusesSecondJobPerAdmin(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	o := newTestOrchestrator(&fakeRecipients{accounts: accounts(2)}, sender, 100)

	first, err := o.Start(1, "one", models.AudienceAll)
	require.NoError(t, err)
	assert.True(t, o.Running(1))

	_, err = o.Start(1, "two", models.AudienceAll)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	other, err := o.Start(2, "other admin", models.AudienceAll)
	require.NoError(t, err)

	close(sender.gate)
	<-first.Done()
	<-other.Done()

	_, err = o.Start(1, "three", models.AudienceAll)
	require.NoError(t, err)
	o.Wait()
}

func TestBroadcastAudienceError(t *testing.T) {
	sender := newFakeSender()
	o := newTestOrchestrator(&fakeRecipients{err: errors.New("db down")}, sender, 100)

	job, err := o.Start(1, "hi", models.AudiencePaid)
	require.NoError(t, err)
	<-job.Done()

	assert.Error(t, job.Snapshot().Err)
	assert.Equal(t, []string{fmt.Sprintf(msgFailed, errors.New("db down"))}, sender.Reports())
	assert.False(t, o.Running(1))
}

func TestBroadcastShutdownCancels(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	o := newTestOrchestrator(&fakeRecipients{accounts: accounts(3)}, sender, 100)

	job, err := o.Start(1, "hi", models.AudienceAll)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Shutdown(ctx), context.DeadlineExceeded)

	<-job.Done()
	snap := job.Snapshot()
	assert.Error(t, snap.Err)
	assert.Equal(t, 1, snap.Failed)
}

func TestSanitize(t *testing.T) {
	o := newTestOrchestrator(&fakeRecipients{}, newFakeSender(), 100)

	assert.Equal(t, "<b>Скидка</b> 50%", o.Sanitize("<b>Скидка</b> 50%"))
	assert.Equal(t, "click", o.Sanitize(`<span onclick="x()">click</span>`))
	assert.Equal(t, "", o.Sanitize("<script>alert(1)</script>"))
	assert.Equal(t, "site", o.Sanitize(`<a href="javascript:alert(1)">site</a>`))
	assert.Equal(t, `<a href="https://example.com">site</a>`,
		o.Sanitize(`<a href="https://example.com">site</a>`))
}
