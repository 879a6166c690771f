package schedule

import "time"

// Slot is a single computed reminder instant. At is always UTC. Reason is a
// short human explanation of the slot; pre-start slots use it verbatim as the
// notification message, frequency slots keep the message empty so the worker
// can generate it at send time.
type Slot struct {
	At     time.Time
	Reason string
}

const (
	reasonPreStart   = "Get ready to start your task soon!"
	reasonAtStart    = "It's time to begin your task!"
	reasonUpcoming   = "Reminder: You have an upcoming task"
	reasonKeepGoing  = "Reminder: Keep making progress on your task!"
	preStartLead     = time.Hour
	unboundedHorizon = 100 * 365 * 24 * time.Hour
)

// ComputeNext returns the next legal reminder instant after base, or ok=false
// when no instant exists before the deadline.
//
// The candidate starts at base (plus one frequency interval when freqBased),
// is pushed out of the sleep cycle (hard block), then out of the first quiet
// window containing it (soft block), and is dropped if the result reaches the
// deadline. Quiet windows are checked in a single pass: a candidate moved out
// of one window is not re-checked against the others.
func ComputeNext(base time.Time, p Profile, deadline time.Time, freqBased bool) (Slot, bool) {
	loc := p.Location()
	local := base.In(loc)
	deadlineLocal := deadline.In(loc)

	if !local.Before(deadlineLocal) {
		return Slot{}, false
	}

	cand := local
	if freqBased {
		cand = cand.Add(p.Frequency)
	}

	cand = adjustForSleepCycle(cand, p.SleepStart, p.SleepEnd)
	cand = adjustForQuietHours(cand, p.QuietHours)

	if !cand.Before(deadlineLocal) {
		return Slot{}, false
	}

	reason := reasonUpcoming
	if freqBased {
		reason = reasonKeepGoing
	}
	return Slot{At: cand.UTC(), Reason: reason}, true
}

// PreStartReminders produces at most one "starts soon" slot for a task
// created with the given start time. Runs once, at task-creation time.
func PreStartReminders(now, start time.Time, p Profile) []Slot {
	diff := start.Sub(now)

	// More than an hour out: nudge one hour before start.
	if diff > preStartLead {
		cand := adjustBlocks(start.Add(-preStartLead), p)
		return []Slot{{At: cand.UTC(), Reason: reasonPreStart}}
	}

	// Starting within the hour: nudge at the start itself.
	if diff > 0 {
		cand := adjustBlocks(start, p)
		return []Slot{{At: cand.UTC(), Reason: reasonAtStart}}
	}

	// Already running: first frequency check now, the real deadline takes
	// over on the next chain step.
	if slot, ok := ComputeNext(now, p, now.Add(unboundedHorizon), true); ok {
		return []Slot{slot}
	}
	return nil
}

func adjustBlocks(t time.Time, p Profile) time.Time {
	local := t.In(p.Location())
	local = adjustForSleepCycle(local, p.SleepStart, p.SleepEnd)
	return adjustForQuietHours(local, p.QuietHours)
}

// adjustForSleepCycle moves t forward to sleepEnd when it falls inside
// [sleepStart, sleepEnd), handling ranges that wrap past midnight.
func adjustForSleepCycle(t time.Time, sleepStart, sleepEnd string) time.Time {
	startMins, err := ParseClock(sleepStart)
	if err != nil {
		return t
	}
	endMins, err := ParseClock(sleepEnd)
	if err != nil {
		return t
	}

	cur := minuteOfDay(t)
	wraps := startMins > endMins

	var inSleep bool
	if wraps {
		inSleep = cur >= startMins || cur < endMins
	} else {
		inSleep = cur >= startMins && cur < endMins
	}
	if !inSleep {
		return t
	}

	adjusted := time.Date(t.Year(), t.Month(), t.Day(), endMins/60, endMins%60, 0, 0, t.Location())
	if wraps && cur >= startMins {
		// Late-night candidate, sleep ends tomorrow morning.
		adjusted = adjusted.AddDate(0, 0, 1)
	}
	return adjusted
}

// adjustForQuietHours moves t to the end of the first window containing it.
// Windows are same-day ranges and are not iteratively merged.
func adjustForQuietHours(t time.Time, windows []Window) time.Time {
	if len(windows) == 0 {
		return t
	}

	cur := minuteOfDay(t)
	for _, w := range windows {
		startMins, err := ParseClock(w.Start)
		if err != nil {
			continue
		}
		endMins, err := ParseClock(w.End)
		if err != nil {
			continue
		}
		if cur >= startMins && cur < endMins {
			return time.Date(t.Year(), t.Month(), t.Day(), endMins/60, endMins%60, 0, 0, t.Location())
		}
	}
	return t
}
