package temporal

import (
	"fmt"
	"time"
)

// MidnightCrossover states how "today" and "yesterday" should be read
// when a session spans midnight. The session context is never silently
// discarded: the chosen branch and its reasoning are always recorded.
type MidnightCrossover struct {
	SessionStartedDate      time.Time
	CurrentDate             time.Time
	HasCrossedMidnight      bool
	TodayInterpretation     string
	TodayDate               time.Time
	YesterdayInterpretation string
	YesterdayDate           time.Time
	Confidence              float64
	Reasoning               string
}

// HandleMidnightCrossover decides the interpretation of "today" for a
// session that may have crossed midnight in the user's zone.
//
// Heuristic: before 4 AM local with less than six hours in session,
// "today" still means the day the session started.
func (r *Reasoner) HandleMidnightCrossover(sessionStart, current time.Time, timezone string) *MidnightCrossover {
	loc, _, _ := r.loadLocation(timezone)
	sessionLocal := sessionStart.In(loc)
	currentLocal := current.In(loc)

	sessionDate := dateOf(sessionLocal)
	currentDate := dateOf(currentLocal)

	if sessionDate.Equal(currentDate) {
		return &MidnightCrossover{
			SessionStartedDate:      sessionDate,
			CurrentDate:             currentDate,
			HasCrossedMidnight:      false,
			TodayInterpretation:     "the current calendar day",
			TodayDate:               currentDate,
			YesterdayInterpretation: "the previous calendar day",
			YesterdayDate:           currentDate.AddDate(0, 0, -1),
			Confidence:              0.95,
			Reasoning:               "Session has not crossed midnight, standard interpretation applies.",
		}
	}

	hoursSinceMidnight := float64(currentLocal.Hour()) + float64(currentLocal.Minute())/60
	hoursInSession := current.Sub(sessionStart).Hours()

	var todayDate time.Time
	var confidence float64
	var reasoning string

	if hoursSinceMidnight < 4 && hoursInSession < 6 {
		todayDate = sessionDate
		confidence = 0.7
		reasoning = fmt.Sprintf(
			"Session started at %s and current time is %s. Since it's early morning and the session is recent, 'today' likely refers to %s.",
			sessionLocal.Format("15:04"), currentLocal.Format("15:04"), sessionDate.Format("January 2"))
	} else {
		todayDate = currentDate
		confidence = 0.85
		reasoning = fmt.Sprintf(
			"Session has crossed midnight. Using calendar day interpretation. 'Today' refers to %s.",
			currentDate.Format("January 2"))
	}

	return &MidnightCrossover{
		SessionStartedDate:      sessionDate,
		CurrentDate:             currentDate,
		HasCrossedMidnight:      true,
		TodayInterpretation:     "refers to " + todayDate.Format("Monday, January 2"),
		TodayDate:               todayDate,
		YesterdayInterpretation: "refers to " + todayDate.AddDate(0, 0, -1).Format("Monday, January 2"),
		YesterdayDate:           todayDate.AddDate(0, 0, -1),
		Confidence:              confidence,
		Reasoning:               reasoning,
	}
}

// dateOf truncates an instant to its civil date in place.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
