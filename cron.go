package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// --- Weekly Trigger ---

// weekdayNames maps stored weekday numbers (1=Monday..7=Sunday) to short names.
var weekdayNames = map[int]string{
	1: "mon",
	2: "tue",
	3: "wed",
	4: "thu",
	5: "fri",
	6: "sat",
	7: "sun",
}

// WeeklyTrigger fires at Hour:Minute on each of Weekdays (1=Monday..7=Sunday).
type WeeklyTrigger struct {
	Weekdays []int
	Hour     int
	Minute   int
}

func (t WeeklyTrigger) sortedWeekdays() []int {
	seen := map[int]bool{}
	var days []int
	for _, d := range t.Weekdays {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}

// DayNames renders the weekdays in ascending order, e.g. "mon, wed, sun".
func (t WeeklyTrigger) DayNames() string {
	days := t.sortedWeekdays()
	names := make([]string, 0, len(days))
	for _, d := range days {
		if n, ok := weekdayNames[d]; ok {
			names = append(names, n)
		} else {
			names = append(names, strconv.Itoa(d))
		}
	}
	return strings.Join(names, ", ")
}

// CronSpec renders the trigger as a 5-field cron expression. Cron counts
// weekdays from Sunday=0, so Sunday (7) becomes 0.
func (t WeeklyTrigger) CronSpec() string {
	days := t.sortedWeekdays()
	dows := make([]int, 0, len(days))
	for _, d := range days {
		dows = append(dows, d%7)
	}
	sort.Ints(dows)
	parts := make([]string, len(dows))
	for i, d := range dows {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%d %d * * %s", t.Minute, t.Hour, strings.Join(parts, ","))
}

func (t WeeklyTrigger) String() string {
	return fmt.Sprintf("%02d:%02d %s", t.Hour, t.Minute, t.DayNames())
}

// --- Runtime Job State ---

type weeklyJob struct {
	id      string
	trigger WeeklyTrigger
	expr    cronExpr
	fn      func(context.Context) error
	nextRun time.Time
	lastRun time.Time
	lastErr string
	running bool
}

// --- Weekly Scheduler ---

// WeeklyScheduler runs callbacks on weekly triggers in one fixed timezone.
type WeeklyScheduler struct {
	loc       *time.Location
	tickEvery time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*weeklyJob

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup // ticker goroutine
	jobWg    sync.WaitGroup // running callbacks
}

func newWeeklyScheduler(loc *time.Location) *WeeklyScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &WeeklyScheduler{
		loc:       loc,
		tickEvery: 30 * time.Second,
		now:       time.Now,
		jobs:      make(map[string]*weeklyJob),
		stopCh:    make(chan struct{}),
	}
}

// AddJob schedules fn on trigger and returns the new job id.
func (s *WeeklyScheduler) AddJob(fn func(context.Context) error, trigger WeeklyTrigger) (string, error) {
	if len(trigger.Weekdays) == 0 {
		return "", fmt.Errorf("bad trigger: no weekdays")
	}
	for _, d := range trigger.Weekdays {
		if d < 1 || d > 7 {
			return "", fmt.Errorf("bad trigger: weekday %d", d)
		}
	}
	expr, err := parseCronExpr(trigger.CronSpec())
	if err != nil {
		return "", fmt.Errorf("bad trigger: %w", err)
	}

	j := &weeklyJob{
		id:      uuid.NewString(),
		trigger: trigger,
		expr:    expr,
		fn:      fn,
	}
	j.nextRun = nextRunAfter(expr, s.loc, s.now().In(s.loc))

	s.mu.Lock()
	s.jobs[j.id] = j
	n := len(s.jobs)
	s.mu.Unlock()

	schedulerJobs.Set(float64(n))
	logDebug("scheduler added job", "jobId", j.id, "trigger", trigger.String(), "nextRun", j.nextRun.Format(time.RFC3339))
	return j.id, nil
}

// RemoveJob cancels a job. A callback already running is left to finish.
func (s *WeeklyScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	_, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	n := len(s.jobs)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("scheduler job %q: %w", id, ErrJobNotFound)
	}
	schedulerJobs.Set(float64(n))
	logDebug("scheduler removed job", "jobId", id)
	return nil
}

// NextRun reports when the job fires next.
func (s *WeeklyScheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return j.nextRun, true
}

func (s *WeeklyScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *WeeklyScheduler) start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickEvery)
		defer ticker.Stop()

		logInfo("weekly scheduler started", "tick", s.tickEvery.String(), "tz", s.loc.String())

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// stop ends the ticker and waits (bounded) for running callbacks.
func (s *WeeklyScheduler) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	done := make(chan struct{})
	go func() {
		s.jobWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logInfo("weekly scheduler stopped")
	case <-time.After(30 * time.Second):
		logWarn("weekly scheduler shutdown timeout, callbacks still running")
	}
}

func (s *WeeklyScheduler) tick(ctx context.Context) {
	nowLocal := s.now().In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.running {
			continue
		}
		if !j.nextRun.IsZero() && nowLocal.Before(j.nextRun) {
			continue
		}
		if !j.expr.matches(nowLocal) {
			continue
		}
		// Avoid double-firing in the same minute.
		if !j.lastRun.IsZero() &&
			j.lastRun.Truncate(time.Minute).Equal(nowLocal.Truncate(time.Minute)) {
			continue
		}

		j.running = true
		j.lastRun = nowLocal
		j.nextRun = nextRunAfter(j.expr, s.loc, nowLocal)
		s.jobWg.Add(1)
		go func(j *weeklyJob) {
			defer s.jobWg.Done()
			s.runJob(ctx, j)
		}(j)
	}
}

func (s *WeeklyScheduler) runJob(ctx context.Context, j *weeklyJob) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		s.mu.Lock()
		j.running = false
		if err != nil {
			j.lastErr = err.Error()
		} else {
			j.lastErr = ""
		}
		s.mu.Unlock()
		if err != nil {
			logError("scheduler job failed", "jobId", j.id, "trigger", j.trigger.String(), "error", err)
		}
	}()
	err = j.fn(ctx)
}

// --- Cron Expression Parser ---

// cronExpr represents a parsed 5-field cron expression.
// Fields: minute(0-59) hour(0-23) dom(1-31) month(1-12) dow(0-6, 0=Sunday)
type cronExpr struct {
	minutes []bool // [60]
	hours   []bool // [24]
	doms    []bool // [32] (index 0 unused)
	months  []bool // [13] (index 0 unused)
	dows    []bool // [7]
}

func (e cronExpr) matches(t time.Time) bool {
	return e.minutes[t.Minute()] &&
		e.hours[t.Hour()] &&
		e.doms[t.Day()] &&
		e.months[int(t.Month())] &&
		e.dows[int(t.Weekday())]
}

func parseCronExpr(s string) (cronExpr, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return cronExpr{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	e := cronExpr{
		minutes: make([]bool, 60),
		hours:   make([]bool, 24),
		doms:    make([]bool, 32),
		months:  make([]bool, 13),
		dows:    make([]bool, 7),
	}
	specs := []struct {
		name     string
		min, max int
		dst      []bool
	}{
		{"minute", 0, 59, e.minutes},
		{"hour", 0, 23, e.hours},
		{"dom", 1, 31, e.doms},
		{"month", 1, 12, e.months},
		{"dow", 0, 6, e.dows},
	}

	for i, sp := range specs {
		vals, err := parseField(fields[i], sp.min, sp.max)
		if err != nil {
			return cronExpr{}, fmt.Errorf("%s: %w", sp.name, err)
		}
		for _, v := range vals {
			sp.dst[v] = true
		}
	}
	return e, nil
}

// parseField parses a single cron field. Supports: *, N, N-M, */N, N-M/S, N,M,O
func parseField(field string, min, max int) ([]int, error) {
	var result []int
	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, vals...)
	}
	return result, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	step := 1
	if idx := strings.Index(part, "/"); idx != -1 {
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("bad step in %q", part)
		}
		step = s
		part = part[:idx]
	}

	var lo, hi int
	switch {
	case part == "*":
		lo, hi = min, max

	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		var err error
		if lo, err = strconv.Atoi(bounds[0]); err != nil {
			return nil, fmt.Errorf("bad range start in %q", part)
		}
		if hi, err = strconv.Atoi(bounds[1]); err != nil {
			return nil, fmt.Errorf("bad range end in %q", part)
		}

	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", part)
		}
		if v < min || v > max {
			return nil, fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
		}
		if step == 1 {
			return []int{v}, nil
		}
		lo, hi = v, max
	}

	if lo < min || hi > max || lo > hi {
		return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
	}
	var vals []int
	for v := lo; v <= hi; v += step {
		vals = append(vals, v)
	}
	return vals, nil
}

// nextRunAfter finds the first minute after `after` matching expr.
func nextRunAfter(expr cronExpr, loc *time.Location, after time.Time) time.Time {
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)

	// A weekly expression always matches within 8 days; a full year covers
	// anything parseCronExpr accepts.
	limit := t.Add(366 * 24 * time.Hour)
	for t.Before(limit) {
		if expr.matches(t) {
			return t
		}
		switch {
		case !expr.months[int(t.Month())]:
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !expr.doms[t.Day()] || !expr.dows[int(t.Weekday())]:
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !expr.hours[t.Hour()]:
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		default:
			t = t.Add(time.Minute)
		}
	}
	return time.Time{}
}
