package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
)

// Archive triggers, used as metric labels.
const (
	TriggerManual = "manual"
	TriggerSweep  = "sweep"
)

// ServiceHooks are optional callbacks fired after each successful operation.
type ServiceHooks struct {
	OnStatus     func(status Status)
	OnPriority   func(p Priority)
	OnDelete     func(found bool)
	OnArchive    func(trigger string, n int)
	OnNotify     func(n *Notification)
	OnStoreError func(op string, err error)
	OnRefresh    func(active, archived int, seconds float64)
}

// RefreshResult is the outcome of a refresh.
type RefreshResult struct {
	Active      []Report `json:"active"`
	Archived    []Report `json:"archived"`
	ArchivedNow int      `json:"archived_now"`
}

// StatusResult is the outcome of a status update.
type StatusResult struct {
	Active       []Report      `json:"active"`
	Notification *Notification `json:"notification,omitempty"`
}

// Lists holds both collections after an archive.
type Lists struct {
	Active   []Report `json:"active"`
	Archived []Report `json:"archived"`
}

// Service is the only component that touches the Store. Every operation
// holds mu for its whole duration so no two run interleaved.
type Service struct {
	mu        sync.Mutex
	store     Store
	inbox     Inbox
	logger    log.Logger
	hooks     ServiceHooks
	delayDays int
	newID     IDFunc
}

// NewService creates a new report service. delayDays is the archival delay
// past completion; zero and negative values are honoured as given.
func NewService(store Store, inbox Inbox, logger log.Logger, delayDays int, hooks ServiceHooks) *Service {
	if store == nil {
		panic(xerrors.New("report store is required"))
	}
	if inbox == nil {
		panic(xerrors.New("notification inbox is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		inbox:     inbox,
		logger:    logger,
		hooks:     hooks,
		delayDays: delayDays,
		newID:     NewID,
	}
}

// Refresh loads both collections, moves reports that are due into the
// archive, and returns the resulting lists. Nothing is written when no
// report is due.
func (s *Service) Refresh(ctx context.Context, now time.Time) (*RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}
	archived, err := s.store.LoadArchived(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_archived", err)
	}

	keep, due := Partition(active, now, s.delayDays)
	res := &RefreshResult{Active: active, Archived: archived}

	if len(due) > 0 {
		newArchived := make([]Report, 0, len(archived)+len(due))
		newArchived = append(newArchived, archived...)
		newArchived = append(newArchived, due...)

		if err := s.store.ReplaceBoth(ctx, keep, newArchived); err != nil {
			return nil, s.storeErr(ctx, "replace_both", err)
		}

		res = &RefreshResult{Active: keep, Archived: newArchived, ArchivedNow: len(due)}
		s.logger.Info(ctx, "reports archived automatically",
			"count", len(due),
			"delay_days", s.delayDays,
		)
		if s.hooks.OnArchive != nil {
			s.hooks.OnArchive(TriggerSweep, len(due))
		}
	}

	if s.hooks.OnRefresh != nil {
		s.hooks.OnRefresh(len(res.Active), len(res.Archived), time.Since(start).Seconds())
	}
	return res, nil
}

// UpdateStatus sets the status of an active report and, when the report has
// an author, appends a notification to the inbox. Setting the current status
// again writes nothing and notifies nobody.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) (*StatusResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	L := s.logger.With("report_id", id)

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}

	i := indexOf(active, id)
	if i < 0 {
		L.Warn(ctx, "status update for report not in active collection")
		return nil, fmt.Errorf("update status %s: %w", id, ErrReportNotFound)
	}

	old := active[i]
	if old.Status == status {
		return &StatusResult{Active: active}, nil
	}

	active[i] = ApplyStatus(old, status, now)
	if err := s.store.ReplaceActive(ctx, active); err != nil {
		return nil, s.storeErr(ctx, "replace_active", err)
	}
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(status)
	}

	res := &StatusResult{Active: active}

	if n := BuildNotification(old, status, now, s.newID); n != nil {
		// the status change is already durable; a failed append is logged, not returned
		if err := s.inbox.Append(ctx, n); err != nil {
			_ = s.storeErr(ctx, "append_notification", err)
		} else {
			res.Notification = n
			if s.hooks.OnNotify != nil {
				s.hooks.OnNotify(n)
			}
		}
	}

	L.Info(ctx, "status updated",
		"from", old.Status,
		"to", status,
		"notified", res.Notification != nil,
	)
	return res, nil
}

// UpdatePriority sets the priority of an active report. No notification is made.
func (s *Service) UpdatePriority(ctx context.Context, id string, p Priority) ([]Report, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}

	i := indexOf(active, id)
	if i < 0 {
		s.logger.Warn(ctx, "priority update for report not in active collection", "report_id", id)
		return nil, fmt.Errorf("update priority %s: %w", id, ErrReportNotFound)
	}

	active[i] = ApplyPriority(active[i], p)
	if err := s.store.ReplaceActive(ctx, active); err != nil {
		return nil, s.storeErr(ctx, "replace_active", err)
	}
	if s.hooks.OnPriority != nil {
		s.hooks.OnPriority(p)
	}

	s.logger.Info(ctx, "priority updated", "report_id", id, "priority", p)
	return active, nil
}

// Delete removes a report from the active collection permanently. Deleting an
// absent id is a no-op.
func (s *Service) Delete(ctx context.Context, id string) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}

	i := indexOf(active, id)
	if i < 0 {
		if s.hooks.OnDelete != nil {
			s.hooks.OnDelete(false)
		}
		return active, nil
	}
	return s.removeAt(ctx, active, i)
}

// DeleteOwn removes a report on behalf of its author and returns the
// author's remaining active reports. An absent id is a no-op; a report by
// someone else fails with ErrNotAuthor and is left in place.
func (s *Service) DeleteOwn(ctx context.Context, id, email string) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}

	i := indexOf(active, id)
	if i < 0 {
		if s.hooks.OnDelete != nil {
			s.hooks.OnDelete(false)
		}
		return authoredBy(active, email), nil
	}
	if !isAuthor(active[i], email) {
		s.logger.Warn(ctx, "delete of report by another author refused", "report_id", id)
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotAuthor)
	}

	next, err := s.removeAt(ctx, active, i)
	if err != nil {
		return nil, err
	}
	return authoredBy(next, email), nil
}

func (s *Service) removeAt(ctx context.Context, active []Report, i int) ([]Report, error) {
	id := active[i].ID
	next := make([]Report, 0, len(active)-1)
	next = append(next, active[:i]...)
	next = append(next, active[i+1:]...)

	if err := s.store.ReplaceActive(ctx, next); err != nil {
		return nil, s.storeErr(ctx, "replace_active", err)
	}
	if s.hooks.OnDelete != nil {
		s.hooks.OnDelete(true)
	}

	s.logger.Info(ctx, "report deleted", "report_id", id)
	return next, nil
}

// Archive moves a report from the active collection to the front of the
// archive. It fails with ErrReportNotFound when the report is no longer active.
func (s *Service) Archive(ctx context.Context, id string) (*Lists, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}
	archived, err := s.store.LoadArchived(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_archived", err)
	}

	i := indexOf(active, id)
	if i < 0 {
		s.logger.Warn(ctx, "archive for report not in active collection", "report_id", id)
		return nil, fmt.Errorf("archive %s: %w", id, ErrReportNotFound)
	}

	r := active[i]
	newActive := make([]Report, 0, len(active)-1)
	newActive = append(newActive, active[:i]...)
	newActive = append(newActive, active[i+1:]...)

	newArchived := make([]Report, 0, len(archived)+1)
	newArchived = append(newArchived, r)
	newArchived = append(newArchived, archived...)

	if err := s.store.ReplaceBoth(ctx, newActive, newArchived); err != nil {
		return nil, s.storeErr(ctx, "replace_both", err)
	}
	if s.hooks.OnArchive != nil {
		s.hooks.OnArchive(TriggerManual, 1)
	}

	s.logger.Info(ctx, "report archived", "report_id", id, "status", r.Status)
	return &Lists{Active: newActive, Archived: newArchived}, nil
}

// Get looks a report up in the active collection, then in the archive.
func (s *Service) Get(ctx context.Context, id string) (r *Report, archived bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, false, s.storeErr(ctx, "load_active", err)
	}
	if i := indexOf(active, id); i >= 0 {
		return &active[i], false, nil
	}

	arch, err := s.store.LoadArchived(ctx)
	if err != nil {
		return nil, false, s.storeErr(ctx, "load_archived", err)
	}
	if i := indexOf(arch, id); i >= 0 {
		return &arch[i], true, nil
	}
	return nil, false, fmt.Errorf("get %s: %w", id, ErrReportNotFound)
}

// ReportsBy returns the active reports authored by email, compared without case.
func (s *Service) ReportsBy(ctx context.Context, email string) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}
	return authoredBy(active, email), nil
}

func isAuthor(r Report, email string) bool {
	return r.AuthorEmail != nil && strings.EqualFold(*r.AuthorEmail, email)
}

// authoredBy never returns nil.
func authoredBy(reports []Report, email string) []Report {
	out := make([]Report, 0)
	for _, r := range reports {
		if isAuthor(r, email) {
			out = append(out, r)
		}
	}
	return out
}

// Summary counts active reports per region.
func (s *Service) Summary(ctx context.Context) ([]RegionCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "load_active", err)
	}
	return Summarize(active), nil
}

// Inbox returns the notifications addressed to email as they were before
// this call, then marks them all read.
func (s *Service) Inbox(ctx context.Context, email string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.inbox.ListFor(ctx, email)
	if err != nil {
		return nil, s.storeErr(ctx, "list_notifications", err)
	}
	if len(list) == 0 {
		return list, nil
	}
	if err := s.inbox.MarkAllRead(ctx, email); err != nil {
		return nil, s.storeErr(ctx, "mark_read", err)
	}
	return list, nil
}

// UnreadCount returns how many notifications addressed to email are unread.
func (s *Service) UnreadCount(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.inbox.ListFor(ctx, email)
	if err != nil {
		return 0, s.storeErr(ctx, "list_notifications", err)
	}
	n := 0
	for _, x := range list {
		if !x.Read {
			n++
		}
	}
	return n, nil
}

func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, err, "report store operation failed", "op", op)
	if s.hooks.OnStoreError != nil {
		s.hooks.OnStoreError(op, err)
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrMalformedRecord) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
