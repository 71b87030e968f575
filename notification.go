package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrJobNotFound is returned when no live job exists for a user/message.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotificationExists is returned by Add for a message the user already has.
	ErrNotificationExists = errors.New("notification already exists")
	// ErrNotificationNotFound is returned for a message the user does not have.
	ErrNotificationNotFound = errors.New("notification not found")
)

// jobScheduler is the weekly scheduler seen by the notification manager.
type jobScheduler interface {
	AddJob(fn func(context.Context) error, trigger WeeklyTrigger) (string, error)
	RemoveJob(id string) error
	start(ctx context.Context)
	stop()
}

// sendFunc delivers content to a channel.
type sendFunc func(ctx context.Context, channelID, content string) error

// NotificationManager keeps the scheduler's jobs in step with the stored
// notifications. Every mutation of the live map or the store goes through mu.
type NotificationManager struct {
	store *NotificationStore
	sched jobScheduler
	send  sendFunc

	mu      sync.Mutex
	jobs    map[string]map[string]string // user → message → job id
	started bool
}

func newNotificationManager(store *NotificationStore, sched jobScheduler, send sendFunc) *NotificationManager {
	return &NotificationManager{
		store: store,
		sched: sched,
		send:  send,
		jobs:  make(map[string]map[string]string),
	}
}

// Start schedules every stored notification and starts the scheduler. Calling
// it again is a no-op.
func (m *NotificationManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if err := m.LoadAndRun(); err != nil {
		logWarn("notification: some jobs not scheduled", "error", err)
	}
	m.sched.start(ctx)
	return nil
}

func (m *NotificationManager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if started {
		m.sched.stop()
	}
}

// AddJob schedules the stored notification for user/message. A missing
// record or an already scheduled pair is a no-op.
func (m *NotificationManager) AddJob(user, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addJobLocked(user, message)
}

func (m *NotificationManager) addJobLocked(user, message string) error {
	if _, ok := m.jobs[user][message]; ok {
		return nil
	}
	rec, found, err := m.store.Get(user, message)
	if err != nil {
		return fmt.Errorf("add job %s/%q: %w", user, message, err)
	}
	if !found {
		return nil
	}

	trigger := rec.trigger()
	id, err := m.sched.AddJob(m.deliverFunc(user, message, string(rec.ChannelID)), trigger)
	if err != nil {
		return fmt.Errorf("add job %s/%q: %w", user, message, err)
	}
	if m.jobs[user] == nil {
		m.jobs[user] = make(map[string]string)
	}
	m.jobs[user][message] = id
	m.updateGaugeLocked()
	logInfo("notification scheduled", "user", user, "message", message, "trigger", trigger.String(), "jobId", id)
	return nil
}

// DelJob cancels the live job for user/message.
func (m *NotificationManager) DelJob(user, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delJobLocked(user, message)
}

func (m *NotificationManager) delJobLocked(user, message string) error {
	id, ok := m.jobs[user][message]
	if !ok {
		return fmt.Errorf("%s/%q: %w", user, message, ErrJobNotFound)
	}
	err := m.sched.RemoveJob(id)
	delete(m.jobs[user], message)
	if len(m.jobs[user]) == 0 {
		delete(m.jobs, user)
	}
	m.updateGaugeLocked()
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	logInfo("notification unscheduled", "user", user, "message", message, "jobId", id)
	return nil
}

// LoadAndRun schedules every stored notification not yet scheduled. It can
// be run any number of times.
func (m *NotificationManager) LoadAndRun() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.store.UserIDs()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var errs []error
	for _, user := range users {
		messages, err := m.store.Messages(user)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", user, err))
			continue
		}
		for _, message := range messages {
			if err := m.addJobLocked(user, message); err != nil {
				errs = append(errs, err)
			}
		}
	}
	logInfo("notification jobs loaded", "users", len(users), "live", m.liveLocked())
	return errors.Join(errs...)
}

// Add stores a new notification and schedules it.
func (m *NotificationManager) Add(user, message string, rec NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found, err := m.store.Get(user, message); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%q: %w", message, ErrNotificationExists)
	}
	if err := m.store.Put(user, message, rec); err != nil {
		return err
	}
	return m.addJobLocked(user, message)
}

// Edit replaces the stored notification and reschedules it. The old job is
// removed before the new record is written.
func (m *NotificationManager) Edit(user, message string, rec NotificationRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[user][message]; ok {
		if err := m.delJobLocked(user, message); err != nil {
			return err
		}
	}
	if err := m.store.Put(user, message, rec); err != nil {
		return err
	}
	return m.addJobLocked(user, message)
}

// Delete unschedules and removes a stored notification.
func (m *NotificationManager) Delete(user, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, found, err := m.store.Get(user, message)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%q: %w", message, ErrNotificationNotFound)
	}
	if _, ok := m.jobs[user][message]; ok {
		if err := m.delJobLocked(user, message); err != nil {
			return err
		}
	}
	return m.store.Delete(user, message)
}

// Get returns the stored record.
func (m *NotificationManager) Get(user, message string) (NotificationRecord, bool, error) {
	return m.store.Get(user, message)
}

// Messages lists the user's stored notifications.
func (m *NotificationManager) Messages(user string) ([]string, error) {
	return m.store.Messages(user)
}

// Scheduled reports whether user/message has a live job.
func (m *NotificationManager) Scheduled(user, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[user][message]
	return ok
}

// Live returns the number of live jobs.
func (m *NotificationManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked()
}

func (m *NotificationManager) liveLocked() int {
	n := 0
	for _, msgs := range m.jobs {
		n += len(msgs)
	}
	return n
}

func (m *NotificationManager) updateGaugeLocked() {
	notificationJobs.Set(float64(m.liveLocked()))
}

// deliverFunc builds the scheduler callback. Delivery failures are logged and
// counted; the schedule stays in place for the next week.
func (m *NotificationManager) deliverFunc(user, message, channelID string) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx = withTraceID(ctx, newTraceID("notify"))
		err := m.send(ctx, channelID, message)
		recordDelivery(err)
		if err != nil {
			logWarnCtx(ctx, "notification delivery failed", "user", user, "message", message, "channel", channelID, "error", err)
			return nil
		}
		logInfoCtx(ctx, "notification delivered", "user", user, "channel", channelID)
		return nil
	}
}
