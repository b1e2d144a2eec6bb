package streak

import (
	"fmt"
	"time"
)

// Outcome is the result of one daily evaluation of one streak.
type Outcome int

const (
	// OutcomeSkipped means the streak was inactive and left untouched.
	OutcomeSkipped Outcome = iota
	// OutcomeContinue means the day's requirement was fulfilled.
	OutcomeContinue
	// OutcomeFrozen means a freeze was consumed to cover a missed day.
	OutcomeFrozen
	// OutcomeTerminated means the streak ran out of freezes and was ended.
	OutcomeTerminated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeContinue:
		return "continue"
	case OutcomeFrozen:
		return "frozen"
	case OutcomeTerminated:
		return "terminated"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// TerminationReason records why a streak ended.
type TerminationReason int

const (
	ReasonCancelled TerminationReason = iota
	ReasonExpired
)

func (r TerminationReason) String() string {
	if r == ReasonCancelled {
		return "The streak was cancelled by the user or an administrator."
	}
	return "The streak parameters were not fulfilled in time."
}

// EvaluateDaily decides the fate of one streak for one calendar day and
// applies the decision to s. latest is the streak's most recent submission,
// nil when there is none. today must be a DateOf-normalized date.
//
// On resetDay the freeze count is refilled to MaxFreezes before the
// fulfillment check; the refill is an unconditional reset, not additive.
// The requirement is fulfilled when the latest submission is dated yesterday
// or today. An unfulfilled day costs one freeze; with no freezes left the
// streak is terminated with today as its end date.
//
// Inactive streaks are left untouched and report OutcomeSkipped, so re-running
// a day's evaluation never produces a second termination.
func EvaluateDaily(s *Streak, latest *Submission, today time.Time, resetDay time.Weekday) Outcome {
	if !s.Active {
		return OutcomeSkipped
	}
	if s.Freezes < 0 || s.Freezes > MaxFreezes {
		panic(fmt.Sprintf("streak %s has invalid freeze count %d", s.ID, s.Freezes))
	}
	if today.Weekday() == resetDay {
		s.Freezes = MaxFreezes
	}
	yesterday := today.AddDate(0, 0, -1)
	if LatestSubmittedOn(latest, yesterday, today) {
		return OutcomeContinue
	}
	if s.Freezes > 0 {
		s.Freezes--
		return OutcomeFrozen
	}
	s.Terminate(today)
	return OutcomeTerminated
}

// ReminderDue reports whether the streak's owner still needs to submit today.
// Mirrors the daily check's policy of inspecting only the latest submission.
func ReminderDue(s *Streak, latest *Submission, today time.Time) bool {
	if !s.Active {
		return false
	}
	return !LatestSubmittedOn(latest, today)
}
