// Package eligibility holds the temporal rules deciding whether a
// notification should fire now. Everything here is a pure function of
// domain state and a clock reading; triggers supply both.
package eligibility

import "time"

// BusinessZone is the single timezone the business operates in. Meal
// times and birthdays are interpreted here, never in server-local time.
var BusinessZone = time.FixedZone("TRT", 3*60*60)

// MealDue reports whether the reminder for a meal scheduled at
// timeOfDay ("HH:MM", business timezone) is due at now. The reminder
// instant is timeOfDay minus lead; the eligible window is the half-open
// interval [reminder, reminder+tolerance). Meals without a valid time
// never fire.
func MealDue(timeOfDay string, now time.Time, lead, tolerance time.Duration) bool {
	hh, mm, ok := parseTimeOfDay(timeOfDay)
	if !ok {
		return false
	}

	local := now.In(BusinessZone)
	// Check today's and tomorrow's occurrence: a meal shortly after
	// midnight has its reminder window on the previous calendar day.
	for _, day := range []int{0, 1} {
		meal := time.Date(local.Year(), local.Month(), local.Day()+day, hh, mm, 0, 0, BusinessZone)
		reminder := meal.Add(-lead)
		if !local.Before(reminder) && local.Before(reminder.Add(tolerance)) {
			return true
		}
	}
	return false
}

// BirthdayToday compares month and day only; the year of birth is
// irrelevant. Both instants are read in the business timezone.
func BirthdayToday(birth, today time.Time) bool {
	b := birth.In(BusinessZone)
	t := today.In(BusinessZone)
	return b.Month() == t.Month() && b.Day() == t.Day()
}

// DietRecentlyCreated is the at-least-once "new diet ready" check:
// eligible while createdAt sits inside the trailing window (now-window,
// now].
func DietRecentlyCreated(createdAt, now time.Time, window time.Duration) bool {
	if createdAt.After(now) {
		return false
	}
	return createdAt.After(now.Add(-window))
}

func parseTimeOfDay(s string) (hh, mm int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	hh = int(s[0]-'0')*10 + int(s[1]-'0')
	mm = int(s[3]-'0')*10 + int(s[4]-'0')
	if hh > 23 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}
