package report

import "time"

// DefaultArchiveDelayDays is how long a completed report stays active.
const DefaultArchiveDelayDays = 30

const day = 24 * time.Hour

// Partition splits active reports into those that stay active and those due
// for archival. A report is due iff it is Completed, has CompletedAt, and the
// elapsed whole days (rounded up) exceed delayDays. Order is preserved in both
// outputs and every input lands in exactly one of them.
func Partition(active []Report, now time.Time, delayDays int) (keep, archive []Report) {
	keep = make([]Report, 0, len(active))
	for _, r := range active {
		if dueForArchive(r, now, delayDays) {
			archive = append(archive, r)
			continue
		}
		keep = append(keep, r)
	}
	return keep, archive
}

func dueForArchive(r Report, now time.Time, delayDays int) bool {
	if r.Status != StatusCompleted || r.CompletedAt == nil {
		return false
	}
	return elapsedDays(*r.CompletedAt, now) > int64(delayDays)
}

// elapsedDays is ceil(|now - since| / 24h). One nanosecond counts as a full day.
func elapsedDays(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		d = -d
	}
	return int64((d + day - 1) / day)
}
