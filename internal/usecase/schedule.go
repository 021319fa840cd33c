package usecase

import "time"

// IsBackupDay reports whether t is the first occurrence of weekday in
// its month. The tool is invoked daily by the scheduler and self-gates
// to one substantive run per month.
func IsBackupDay(t time.Time, weekday time.Weekday) bool {
	return t.Weekday() == weekday && t.Day() <= 7
}
