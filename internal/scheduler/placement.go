package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// groupRun holds the working state while one class group is scheduled. global already contains
// every commit made to local.
type groupRun struct {
	engine *Engine
	group  models.ClassGroup
	local  *Schedule
	staged *Schedule
	global *Schedule
	result GroupResult
}

func (r *groupRun) logf(format string, args ...interface{}) {
	line := fmt.Sprintf("[%s] %s", r.group.Name, fmt.Sprintf(format, args...))
	r.result.Log = append(r.result.Log, line)
	r.engine.logger.Debug("scheduler_log", zap.String("class_group", r.group.Name), zap.String("line", line))
}

// injectFixed places fixed activities at their configured window without searching.
func (r *groupRun) injectFixed(fixed []Session) {
	st := r.engine.settings
	for _, s := range fixed {
		w := *s.Fixed
		if w.Day >= st.Days || w.Slot+w.Span() > st.TimeslotsPerDay {
			r.logf("fixed activity %s is outside the grid (day %d, slot %d, %d periods)", s.Label(), w.Day, w.Slot, w.Span())
			r.result.Skipped++
			r.result.Failed++
			continue
		}
		if ClassGroupBusy(r.group.Name, w.Day, w.Slot, w.Span(), r.local.Items()) {
			r.logf("fixed activity %s collides with another fixed activity on day %d slot %d", s.Label(), w.Day, w.Slot)
			r.result.Failed++
			continue
		}
		a := r.assignment(s, w.Day, w.Slot, nil, nil)
		r.local.Add(a)
		r.global.Add(a)
		r.result.Placed++
	}
}

func (r *groupRun) placeAll(ctx context.Context, ordered []Session) error {
	if r.engine.opts.CommitPolicy == CommitPerSession {
		for _, s := range ordered {
			if err := r.placeBatch(ctx, []Session{s}); err != nil {
				return err
			}
		}
		return nil
	}
	for _, batch := range groupBySubject(ordered) {
		if err := r.placeBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// placeBatch stages every session of the batch and commits them together. If any session cannot
// be placed, everything staged for the batch is discarded.
func (r *groupRun) placeBatch(ctx context.Context, batch []Session) error {
	r.staged.reset()
	for _, s := range batch {
		if err := ctx.Err(); err != nil {
			r.staged.reset()
			return err
		}
		if !r.ready(s) {
			r.result.Skipped++
			r.abandon(batch)
			return nil
		}
		placed, ok := r.search(s)
		if ok {
			r.staged.Add(placed)
			continue
		}
		if r.engine.opts.CommitPolicy == CommitPerSession && s.Kind == KindMixed && s.Duration > 1 && r.placeSplit(s) {
			continue
		}
		r.logf("failed to place %s (%s, %d periods)", s.Label(), s.Kind, s.Duration)
		r.abandon(batch)
		return nil
	}
	r.commit(len(batch))
	return nil
}

// ready reports configuration gaps that make a session unplaceable.
func (r *groupRun) ready(s Session) bool {
	if s.Duration > r.engine.settings.TimeslotsPerDay {
		r.logf("%s needs %d consecutive periods but a day has %d", s.Label(), s.Duration, r.engine.settings.TimeslotsPerDay)
		return false
	}
	if s.NeedsTeacher() && len(s.Teachers) == 0 {
		r.logf("no eligible teacher for %s", s.Label())
		return false
	}
	if s.NeedsRoom() && len(s.Rooms) == 0 {
		if tag := s.Subject.RoomTag; tag != "" {
			r.logf("no eligible room for %s (tag %q)", s.Label(), tag)
		} else {
			r.logf("no eligible room for %s", s.Label())
		}
		return false
	}
	return true
}

func (r *groupRun) abandon(batch []Session) {
	if discarded := r.staged.Len(); discarded > 0 {
		r.logf("rolled back %s: discarded %d of %d placed sessions", batch[0].Label(), discarded, len(batch))
		r.result.RolledBack = append(r.result.RolledBack, batch[0].Label())
	}
	r.staged.reset()
	r.result.Failed += len(batch)
}

func (r *groupRun) commit(sessions int) {
	for _, a := range r.staged.Items() {
		r.logf("placed %s (%s) on day %d slot %d for %d periods%s", a.CourseName, a.SessionType, a.Day, a.Slot, a.Duration, describeResources(a))
	}
	r.local.Add(r.staged.Items()...)
	r.global.Add(r.staged.Items()...)
	r.staged.reset()
	r.result.Placed += sessions
}

func describeResources(a models.Assignment) string {
	out := ""
	if a.TeacherID != nil {
		out += " with " + *a.TeacherID
	}
	if a.RoomID != "" {
		out += " in " + a.RoomID
	}
	return out
}

// placeSplit retries an exhausted block as smaller blocks, halving the size each round.
func (r *groupRun) placeSplit(s Session) bool {
	mark := r.staged.Len()
	for _, size := range DurationCandidates(s.Duration)[1:] {
		ok := true
		for _, piece := range splitDuration(s.Duration, size) {
			part := s
			part.Duration = piece
			placed, found := r.search(part)
			if !found {
				ok = false
				break
			}
			r.staged.Add(placed)
		}
		if ok {
			r.logf("split %s into blocks of %d periods", s.Label(), size)
			return true
		}
		r.staged.truncate(mark)
	}
	return false
}

// search walks the retry budget looking for the first candidate that passes every filter.
func (r *groupRun) search(s Session) (models.Assignment, bool) {
	opts := r.engine.opts
	loads := r.teacherLoads()
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		diversify := attempt >= opts.DeterministicAttempts
		for _, day := range r.dayOrder() {
			if s.Duration > 1 && attempt < opts.PrefilterAttempts && !r.hasFreeBlock(day, s.Duration) {
				continue
			}
			for _, slot := range r.slotOrder(s.Duration, diversify) {
				if placed, ok := r.tryCandidate(s, day, slot, attempt, diversify, loads); ok {
					return placed, true
				}
			}
		}
	}
	return models.Assignment{}, false
}

func (r *groupRun) tryCandidate(s Session, day, slot, attempt int, diversify bool, loads map[string]int) (models.Assignment, bool) {
	st := r.engine.settings
	if r.inFixedWindow(day, slot, s.Duration) {
		return models.Assignment{}, false
	}
	if st.HitsLunch(slot, s.Duration) {
		if st.StrictAvoidLunch || (st.AvoidLunch && attempt < r.engine.opts.AvoidLunchAttempts) {
			return models.Assignment{}, false
		}
	}
	if st.CheckMaxPeriodsPerDay && slot >= st.MorningExemptSlots && r.groupDayLoad(day)+s.Duration > st.MaxPeriodsPerDay {
		return models.Assignment{}, false
	}
	// cheap check before teacher and room selection
	if ClassGroupBusy(r.group.Name, day, slot, s.Duration, r.local.Items(), r.staged.Items()) {
		return models.Assignment{}, false
	}

	var teacher *models.Teacher
	if s.NeedsTeacher() {
		chosen := r.chooseTeacher(s.Teachers, diversify, loads)
		if teacherUnavailable(chosen, day, slot, s.Duration) {
			return models.Assignment{}, false
		}
		if TeacherBusy(chosen.ID, day, slot, s.Duration, r.staged.Items(), r.global.Items()) {
			return models.Assignment{}, false
		}
		if chosen.MaxPerDay > 0 && r.teacherDayLoad(chosen.ID, day)+s.Duration > chosen.MaxPerDay {
			return models.Assignment{}, false
		}
		teacher = &chosen
	}

	var room *models.Room
	if s.NeedsRoom() {
		room = r.freeRoom(s.Rooms, day, slot, s.Duration, diversify)
		if room == nil {
			return models.Assignment{}, false
		}
	}
	return r.assignment(s, day, slot, teacher, room), true
}

// chooseTeacher picks uniformly at random, restricted to the least-loaded teachers when
// balancing is on.
func (r *groupRun) chooseTeacher(eligible []models.Teacher, diversify bool, loads map[string]int) models.Teacher {
	pool := eligible
	if diversify {
		pool = make([]models.Teacher, len(eligible))
		copy(pool, eligible)
		r.engine.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	if r.engine.settings.BalanceTeachers {
		least := lo.Min(lo.Map(pool, func(t models.Teacher, _ int) int { return loads[t.ID] }))
		pool = lo.Filter(pool, func(t models.Teacher, _ int) bool { return loads[t.ID] == least })
	}
	return pool[r.engine.rng.Intn(len(pool))]
}

func (r *groupRun) freeRoom(rooms []models.Room, day, slot, duration int, diversify bool) *models.Room {
	order := rooms
	if diversify {
		order = make([]models.Room, len(rooms))
		copy(order, rooms)
		r.engine.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	for i := range order {
		if !RoomBusy(order[i].ID, day, slot, duration, r.staged.Items(), r.global.Items()) {
			room := order[i]
			return &room
		}
	}
	return nil
}

// teacherLoads sums assigned periods per teacher across committed and staged work.
func (r *groupRun) teacherLoads() map[string]int {
	loads := make(map[string]int)
	for _, set := range [][]models.Assignment{r.global.Items(), r.staged.Items()} {
		for _, a := range set {
			if id := a.Teacher(); id != "" {
				loads[id] += a.Duration
			}
		}
	}
	return loads
}

func (r *groupRun) teacherDayLoad(teacherID string, day int) int {
	sum := func(set []models.Assignment) int {
		return lo.SumBy(set, func(a models.Assignment) int {
			if a.Day == day && a.Teacher() == teacherID {
				return a.Duration
			}
			return 0
		})
	}
	return sum(r.global.Items()) + sum(r.staged.Items())
}

func (r *groupRun) groupDayLoad(day int) int {
	sum := func(set []models.Assignment) int {
		return lo.SumBy(set, func(a models.Assignment) int {
			if a.Day == day {
				return a.Duration
			}
			return 0
		})
	}
	return sum(r.local.Items()) + sum(r.staged.Items())
}

// dayOrder lists days by ascending group load when spreading, otherwise in calendar order.
func (r *groupRun) dayOrder() []int {
	st := r.engine.settings
	days := make([]int, st.Days)
	for i := range days {
		days[i] = i
	}
	if !st.SpreadDays {
		return days
	}
	load := make([]int, st.Days)
	for _, day := range days {
		load[day] = r.groupDayLoad(day)
	}
	sort.SliceStable(days, func(i, j int) bool {
		return load[days[i]] < load[days[j]]
	})
	return days
}

func (r *groupRun) slotOrder(duration int, diversify bool) []int {
	last := r.engine.settings.TimeslotsPerDay - duration
	if last < 0 {
		return nil
	}
	slots := make([]int, last+1)
	for i := range slots {
		slots[i] = i
	}
	if diversify {
		r.engine.rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	}
	return slots
}

// hasFreeBlock reports whether the group has duration consecutive free slots on day.
func (r *groupRun) hasFreeBlock(day, duration int) bool {
	slots := r.engine.settings.TimeslotsPerDay
	busy := make([]bool, slots)
	for _, set := range [][]models.Assignment{r.local.Items(), r.staged.Items()} {
		for _, a := range set {
			if a.Day != day {
				continue
			}
			for i := a.Slot; i < a.End() && i < slots; i++ {
				if i >= 0 {
					busy[i] = true
				}
			}
		}
	}
	run := 0
	for _, taken := range busy {
		if taken {
			run = 0
			continue
		}
		run++
		if run >= duration {
			return true
		}
	}
	return false
}

func (r *groupRun) inFixedWindow(day, slot, duration int) bool {
	for _, w := range r.engine.windows {
		if w.Day == day && Overlaps(slot, duration, w.Slot, w.Span()) {
			return true
		}
	}
	return false
}

// assignment builds the output record. A placement outside the grid is a programming error.
func (r *groupRun) assignment(s Session, day, slot int, teacher *models.Teacher, room *models.Room) models.Assignment {
	st := r.engine.settings
	if day < 0 || day >= st.Days || slot < 0 || s.Duration < 1 || slot+s.Duration > st.TimeslotsPerDay {
		panic(fmt.Sprintf("scheduler: %s session of %s at day %d slot %d duration %d is outside the %dx%d grid",
			s.Kind, s.Subject.Name, day, slot, s.Duration, st.Days, st.TimeslotsPerDay))
	}
	a := models.Assignment{
		CourseID:    s.Subject.ID,
		CourseCode:  s.Subject.Code,
		CourseName:  s.Subject.Name,
		ClassGroup:  r.group.Name,
		Day:         day,
		Slot:        slot,
		Duration:    s.Duration,
		Color:       s.Subject.Color,
		SessionType: s.Kind,
	}
	if teacher != nil {
		id, name := teacher.ID, teacher.Name
		a.TeacherID = &id
		a.TeacherName = &name
		a.TeacherCode = teacher.Code
	} else if s.Kind == KindHomeroom && r.group.Advisor != "" {
		advisor := r.group.Advisor
		a.TeacherName = &advisor
	}
	if room != nil {
		a.RoomID = room.ID
		a.RoomCode = room.Code
		a.RoomName = room.Name
	}
	return a
}
