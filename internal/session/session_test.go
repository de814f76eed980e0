package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"fitness-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissingIsIdle(t *testing.T) {
	store := NewMemoryStore()

	s, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, s.Idle())
	assert.Equal(t, int64(42), s.TelegramID)
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := &Session{TelegramID: 1, State: StateWorkoutReview, Plan: "plan"}
	s.Remember(models.PlanExchange{Proposal: "a"}, 3)
	require.NoError(t, store.Save(ctx, s))

	s.Plan = "mutated"
	s.History[0].Proposal = "mutated"

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "plan", got.Plan)
	assert.Equal(t, "a", got.History[0].Proposal)

	got.Plan = "again"
	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "plan", again.Plan)
}

func TestMemoryStoreClearKeepsBusyFlag(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.TryAcquire(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Save(ctx, &Session{TelegramID: 7, State: StateCalorieCapture, Step: StepAwaitingPhoto}))
	require.NoError(t, store.Clear(ctx, 7))

	s, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, s.Idle())

	ok, err = store.TryAcquire(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "busy flag must survive Clear")

	require.NoError(t, store.Release(ctx, 7))
	ok, err = store.TryAcquire(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreBusyDoesNotAcquire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	busy, err := store.Busy(ctx, 7)
	require.NoError(t, err)
	assert.False(t, busy)

	ok, err := store.TryAcquire(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	busy, err = store.Busy(ctx, 7)
	require.NoError(t, err)
	assert.True(t, busy)

	require.NoError(t, store.Release(ctx, 7))
	busy, err = store.Busy(ctx, 7)
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestMemoryStoreTryAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var acquired int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.TryAcquire(ctx, 99); ok {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
}

func TestSaveIdleDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := &Session{TelegramID: 3, State: StateOnboarding, Step: StepGoal}
	require.NoError(t, store.Save(ctx, s))

	s.Reset()
	require.NoError(t, store.Save(ctx, s))

	store.mu.Lock()
	_, ok := store.sessions[3]
	store.mu.Unlock()
	assert.False(t, ok)
}

func TestNextOnboardingStep(t *testing.T) {
	step := StepGoal
	var visited []string
	for step != StepConfirm {
		visited = append(visited, step)
		step = NextOnboardingStep(step)
	}
	assert.Equal(t, OnboardingSteps[:len(OnboardingSteps)-1], visited)
	assert.Equal(t, StepConfirm, NextOnboardingStep(StepConfirm))
}

func TestRememberKeepsNewest(t *testing.T) {
	var s Session
	for _, p := range []string{"a", "b", "c", "d"} {
		s.Remember(models.PlanExchange{Proposal: p, Feedback: "no"}, 3)
	}
	require.Len(t, s.History, 3)
	assert.Equal(t, "b", s.History[0].Proposal)
	assert.Equal(t, "d", s.History[2].Proposal)
}

func TestEncodeDecode(t *testing.T) {
	s := &Session{
		TelegramID: 5,
		State:      StateBroadcastCompose,
		Step:       StepBroadcastConfirm,
		Broadcast:  BroadcastDraft{Text: "hi", Audience: models.AudiencePaid},
	}
	data, err := encode(s)
	require.NoError(t, err)

	got, err := decode(5, data)
	require.NoError(t, err)
	assert.Equal(t, s.Broadcast, got.Broadcast)
	assert.True(t, got.In(StateBroadcastCompose, StepBroadcastConfirm))

	garbage, err := decode(5, []byte("{not json"))
	require.NoError(t, err)
	assert.True(t, garbage.Idle())
}
