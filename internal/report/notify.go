package report

import (
	"fmt"
	"time"
)

// BuildNotification returns the author-facing record for a status change,
// or nil when the report has no author. It does not deliver anything.
func BuildNotification(r Report, status Status, now time.Time, newID IDFunc) *Notification {
	if r.AuthorEmail == nil || *r.AuthorEmail == "" {
		return nil
	}
	if newID == nil {
		newID = NewID
	}
	return &Notification{
		ID:              newID(now),
		UserEmail:       *r.AuthorEmail,
		ReportID:        r.ID,
		Message:         fmt.Sprintf("O status da sua denúncia foi atualizado para: %q", string(status)),
		Read:            false,
		CreatedAt:       now,
		numericReportID: r.numericID,
	}
}
