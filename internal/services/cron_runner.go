package services

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"auction-site/pkg/logger"
)

// onceSchedule fires a single time at `at`. The cron loop asks for Next once
// when the entry is added (or the runner starts) and once more right after
// the entry has run; the second answer is the zero time, which parks the
// entry until it is removed.
type onceSchedule struct {
	mu     sync.Mutex
	at     time.Time
	issued bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.issued {
		s.issued = true
		return s.at
	}
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

type runnerEntry struct {
	id cron.EntryID
	at time.Time
}

// CronJobRunner runs keyed one-shot jobs on a robfig/cron scheduler.
// Scheduling a key that is already pending replaces the earlier job.
type CronJobRunner struct {
	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]*runnerEntry
	log  logger.Logger
}

func NewCronJobRunner(log logger.Logger) *CronJobRunner {
	cl := cronLogger{log: log}
	return &CronJobRunner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		jobs: make(map[string]*runnerEntry),
		log:  log,
	}
}

func (r *CronJobRunner) Schedule(key string, runAt time.Time, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[key]; ok {
		r.cron.Remove(old.id)
	}

	entry := &runnerEntry{at: runAt}
	entry.id = r.cron.Schedule(&onceSchedule{at: runAt}, cron.FuncJob(func() {
		r.release(key, entry)
		fn()
	}))
	r.jobs[key] = entry

	r.log.Debug("Job scheduled", "key", key, "run_at", runAt)
	return nil
}

// release drops a fired entry. The key is only forgotten if it still points
// at this entry; a replacement scheduled in the meantime stays pending.
func (r *CronJobRunner) release(key string, entry *runnerEntry) {
	r.mu.Lock()
	if cur, ok := r.jobs[key]; ok && cur == entry {
		delete(r.jobs, key)
	}
	id := entry.id
	r.mu.Unlock()

	r.cron.Remove(id)
}

func (r *CronJobRunner) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[key]
	if !ok {
		return false
	}
	r.cron.Remove(entry.id)
	delete(r.jobs, key)
	return true
}

func (r *CronJobRunner) Pending(key string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[key]
	if !ok {
		return time.Time{}, false
	}
	return entry.at, true
}

func (r *CronJobRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// AddRecurring registers a job on a standard cron spec such as "@every 1m".
func (r *CronJobRunner) AddRecurring(spec string, fn func()) error {
	_, err := r.cron.AddFunc(spec, fn)
	return err
}

func (r *CronJobRunner) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to return.
func (r *CronJobRunner) Stop() {
	<-r.cron.Stop().Done()
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
