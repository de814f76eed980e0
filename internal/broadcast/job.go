package broadcast

import (
	"sync"
	"time"

	"fitness-bot/internal/models"
)

type Job struct {
	ID        string
	AdminID   int64
	Audience  models.Audience
	StartedAt time.Time

	mu     sync.Mutex
	total  int
	sent   int
	failed int
	err    error
	done   chan struct{}
}

type Snapshot struct {
	Total  int
	Sent   int
	Failed int
	Err    error
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{Total: j.total, Sent: j.sent, Failed: j.failed, Err: j.err}
}

// Done is closed when the job has finished and its summary was sent.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) setTotal(n int) {
	j.mu.Lock()
	j.total = n
	j.mu.Unlock()
}

func (j *Job) tally(ok bool) {
	j.mu.Lock()
	if ok {
		j.sent++
	} else {
		j.failed++
	}
	j.mu.Unlock()
}

func (j *Job) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}
