package report

import "time"

// ApplyStatus returns r with its status set to status. Entering Completed
// stamps CompletedAt with now; leaving Completed clears it. Setting the
// current status again returns r unchanged. No other field is touched.
//
// Any status may move to any other; administrators may reopen work.
func ApplyStatus(r Report, status Status, now time.Time) Report {
	if r.Status == status {
		return r
	}
	switch {
	case status == StatusCompleted:
		t := now
		r.CompletedAt = &t
	case r.Status == StatusCompleted:
		r.CompletedAt = nil
	}
	r.Status = status
	return r
}

// ApplyPriority returns r with its priority set to p.
func ApplyPriority(r Report, p Priority) Report {
	r.Priority = p
	return r
}

// indexOf returns the position of id in reports, or -1.
func indexOf(reports []Report, id string) int {
	for i := range reports {
		if reports[i].ID == id {
			return i
		}
	}
	return -1
}
