package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records jobs instead of running them on a clock.
type fakeScheduler struct {
	mu      sync.Mutex
	seq     int
	jobs    map[string]WeeklyTrigger
	fns     map[string]func(context.Context) error
	started int
	stopped int
	addErr  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		jobs: map[string]WeeklyTrigger{},
		fns:  map[string]func(context.Context) error{},
	}
}

func (f *fakeScheduler) AddJob(fn func(context.Context) error, trigger WeeklyTrigger) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.seq++
	id := fmt.Sprintf("job-%d", f.seq)
	f.jobs[id] = trigger
	f.fns[id] = fn
	return id, nil
}

func (f *fakeScheduler) RemoveJob(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(f.jobs, id)
	delete(f.fns, id)
	return nil
}

func (f *fakeScheduler) start(context.Context) { f.started++ }
func (f *fakeScheduler) stop()                 { f.stopped++ }

func (f *fakeScheduler) only(t *testing.T) (WeeklyTrigger, func(context.Context) error) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.jobs, 1)
	for id, tr := range f.jobs {
		return tr, f.fns[id]
	}
	return WeeklyTrigger{}, nil
}

type sentMessage struct{ channel, content string }

func newTestManager(t *testing.T) (*NotificationManager, *fakeScheduler, *[]sentMessage) {
	t.Helper()
	sched := newFakeScheduler()
	var sent []sentMessage
	m := newNotificationManager(newTestNotificationStore(t), sched, func(_ context.Context, ch, content string) error {
		sent = append(sent, sentMessage{ch, content})
		if ch == "gone" {
			return errors.New("unknown channel")
		}
		return nil
	})
	return m, sched, &sent
}

var standup = NotificationRecord{Hour: 9, Minute: 30, Weekdays: []int{1, 3, 5}, ChannelID: "100"}

func TestNotificationManager_AddJobIsIdempotent(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.store.Put("u1", "standup", standup))

	require.NoError(t, m.AddJob("u1", "standup"))
	require.NoError(t, m.AddJob("u1", "standup"))

	assert.Len(t, sched.jobs, 1)
	assert.Equal(t, 1, m.Live())
	assert.True(t, m.Scheduled("u1", "standup"))
}

func TestNotificationManager_AddJobMissingRecordIsNoop(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.AddJob("u1", "nothing"))
	assert.Empty(t, sched.jobs)
	assert.False(t, m.Scheduled("u1", "nothing"))
}

func TestNotificationManager_DelJobUnknownPair(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.DelJob("u1", "never")
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestNotificationManager_DelJob(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.store.Put("u1", "standup", standup))
	require.NoError(t, m.AddJob("u1", "standup"))

	require.NoError(t, m.DelJob("u1", "standup"))
	assert.Empty(t, sched.jobs)
	assert.Equal(t, 0, m.Live())
	assert.True(t, errors.Is(m.DelJob("u1", "standup"), ErrJobNotFound))
}

func TestNotificationManager_LoadAndRunIsIdempotent(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.store.Put("u1", "standup", standup))
	require.NoError(t, m.store.Put("u1", "lunch", NotificationRecord{Hour: 12, Weekdays: []int{2}, ChannelID: "100"}))
	require.NoError(t, m.store.Put("u2", "gym", NotificationRecord{Hour: 18, Weekdays: []int{6, 7}, ChannelID: "200"}))

	require.NoError(t, m.LoadAndRun())
	require.NoError(t, m.LoadAndRun())

	assert.Len(t, sched.jobs, 3)
	assert.Equal(t, 3, m.Live())
}

func TestNotificationManager_EditReplacesJob(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.Add("u1", "standup", standup))

	edited := NotificationRecord{Hour: 10, Minute: 15, Weekdays: []int{2}, ChannelID: "100"}
	require.NoError(t, m.Edit("u1", "standup", edited))

	tr, _ := sched.only(t)
	assert.Equal(t, WeeklyTrigger{Weekdays: []int{2}, Hour: 10, Minute: 15}, tr)

	got, found, err := m.Get("u1", "standup")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, edited, got)
}

func TestNotificationManager_AddRejectsDuplicate(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Add("u1", "standup", standup))
	err := m.Add("u1", "standup", standup)
	assert.True(t, errors.Is(err, ErrNotificationExists))
	assert.Equal(t, 1, m.Live())
}

func TestNotificationManager_Delete(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.Add("u1", "standup", standup))

	require.NoError(t, m.Delete("u1", "standup"))
	assert.Empty(t, sched.jobs)
	msgs, err := m.Messages("u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.True(t, errors.Is(m.Delete("u1", "standup"), ErrNotificationNotFound))
}

func TestNotificationManager_DeliveryFailureIsSwallowed(t *testing.T) {
	m, sched, sent := newTestManager(t)
	require.NoError(t, m.Add("u1", "ping", NotificationRecord{Hour: 1, Weekdays: []int{1}, ChannelID: "gone"}))

	_, fn := sched.only(t)
	assert.NoError(t, fn(context.Background()))
	assert.Equal(t, []sentMessage{{"gone", "ping"}}, *sent)
	assert.True(t, m.Scheduled("u1", "ping"), "schedule stays after a failed delivery")
}

func TestNotificationManager_StartStop(t *testing.T) {
	m, sched, _ := newTestManager(t)
	require.NoError(t, m.store.Put("u1", "standup", standup))

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, sched.started)
	assert.Equal(t, 1, m.Live())

	m.Stop()
	m.Stop()
	assert.Equal(t, 1, sched.stopped)
}

func TestNotificationManager_SchedulerError(t *testing.T) {
	m, sched, _ := newTestManager(t)
	sched.addErr = errors.New("bad trigger")
	require.NoError(t, m.store.Put("u1", "standup", standup))

	assert.Error(t, m.AddJob("u1", "standup"))
	assert.False(t, m.Scheduled("u1", "standup"))
}
