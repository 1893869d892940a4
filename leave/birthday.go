package leave

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// ValidateBirthdayLeave checks a birthday leave against the user's record. It
// runs before approval; a failure rejects the approval with no ledger effect.
func ValidateBirthdayLeave(user User, app Application) error {
	if user.BirthDate.IsZero() {
		return generic.NewValidationError("birth_date", "user %s has no birth date on record", user.ID)
	}
	if app.IsHalfDay {
		return generic.NewValidationError("is_half_day", "birthday leave must be a full day")
	}
	if !app.IsSingleDay() {
		return generic.NewValidationError("end_date", "birthday leave must be a single day")
	}
	if !isBirthday(user.BirthDate, app.StartDate) {
		return generic.NewValidationError("start_date", "%s is not the birthday of user %s", app.StartDate, user.ID)
	}
	return nil
}

// isBirthday matches month and day. A 29 February birthday falls on
// 28 February in non-leap years.
func isBirthday(birth, day generic.Date) bool {
	if day.SameMonthDay(birth) {
		return true
	}
	return birth.Month() == time.February && birth.Day() == 29 &&
		day.Month() == time.February && day.Day() == 28 && !isLeap(day.Year())
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
