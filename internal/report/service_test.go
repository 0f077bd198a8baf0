package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// mockStore implements Store and Inbox for testing.
type mockStore struct {
	mu       sync.Mutex
	active   []Report
	archived []Report
	inbox    []Notification

	writes    int
	loadErr   error
	writeErr  error
	appendErr error
}

func newMockStore(active ...Report) *mockStore {
	return &mockStore{active: clone(active), archived: []Report{}, inbox: []Notification{}}
}

func clone(rs []Report) []Report {
	out := make([]Report, len(rs))
	copy(out, rs)
	return out
}

func (m *mockStore) LoadActive(context.Context) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return clone(m.active), nil
}

func (m *mockStore) LoadArchived(context.Context) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return clone(m.archived), nil
}

func (m *mockStore) ReplaceActive(_ context.Context, rs []Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.active = clone(rs)
	return nil
}

func (m *mockStore) ReplaceArchived(_ context.Context, rs []Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.archived = clone(rs)
	return nil
}

func (m *mockStore) ReplaceBoth(_ context.Context, active, archived []Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.active = clone(active)
	m.archived = clone(archived)
	return nil
}

func (m *mockStore) Append(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.inbox = append([]Notification{*n}, m.inbox...)
	return nil
}

func (m *mockStore) ListFor(_ context.Context, email string) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := []Notification{}
	for _, n := range m.inbox {
		if n.UserEmail == email {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockStore) MarkAllRead(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	for i := range m.inbox {
		if m.inbox[i].UserEmail == email {
			m.inbox[i].Read = true
		}
	}
	return nil
}

func newTestService(m *mockStore, hooks ServiceHooks) *Service {
	svc := NewService(m, m, log.Nop(), DefaultArchiveDelayDays, hooks)
	svc.newID = func(time.Time) string { return "n-fixed" }
	return svc
}

func strptr(s string) *string { return &s }

func TestNewService_PanicsWithoutStore(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil store")
		}
	}()
	NewService(nil, newMockStore(), log.Nop(), 30, ServiceHooks{})
}

func TestNewService_PanicsWithoutInbox(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil inbox")
		}
	}()
	NewService(newMockStore(), nil, log.Nop(), 30, ServiceHooks{})
}

func TestRefresh_ArchivesDueReports(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "a", Status: StatusCompleted, CompletedAt: &t0},
		Report{ID: "b", Status: StatusInProgress},
	)
	m.archived = []Report{{ID: "old", Status: StatusCompleted, CompletedAt: &t0}}

	var trigger string
	var archivedN int
	svc := newTestService(m, ServiceHooks{
		OnArchive: func(tr string, n int) { trigger, archivedN = tr, n },
	})

	res, err := svc.Refresh(context.Background(), t0.Add(31*day))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.ArchivedNow != 1 {
		t.Errorf("ArchivedNow = %d, want 1", res.ArchivedNow)
	}
	if len(res.Active) != 1 || res.Active[0].ID != "b" {
		t.Errorf("Active = %+v, want [b]", res.Active)
	}
	if len(res.Archived) != 2 || res.Archived[0].ID != "old" || res.Archived[1].ID != "a" {
		t.Errorf("Archived = %+v, want [old a]", res.Archived)
	}
	if len(m.active) != 1 || len(m.archived) != 2 {
		t.Errorf("store not updated: active=%d archived=%d", len(m.active), len(m.archived))
	}
	if trigger != TriggerSweep || archivedN != 1 {
		t.Errorf("OnArchive(%q, %d), want (%q, 1)", trigger, archivedN, TriggerSweep)
	}
}

func TestRefresh_NothingDueWritesNothing(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "a", Status: StatusCompleted, CompletedAt: &t0})
	svc := newTestService(m, ServiceHooks{})

	res, err := svc.Refresh(context.Background(), t0.Add(29*day))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.ArchivedNow != 0 || len(res.Active) != 1 {
		t.Errorf("res = %+v, want one active and nothing archived", res)
	}
	if m.writes != 0 {
		t.Errorf("writes = %d, want 0", m.writes)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "a", Status: StatusCompleted, CompletedAt: &t0},
		Report{ID: "b", Status: StatusUnderReview},
	)
	svc := newTestService(m, ServiceHooks{})
	ctx := context.Background()
	now := t0.Add(40 * day)

	first, err := svc.Refresh(ctx, now)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	writes := m.writes

	second, err := svc.Refresh(ctx, now)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if second.ArchivedNow != 0 {
		t.Errorf("second ArchivedNow = %d, want 0", second.ArchivedNow)
	}
	if m.writes != writes {
		t.Errorf("second refresh wrote to the store")
	}
	if len(second.Active) != len(first.Active) || len(second.Archived) != len(first.Archived) {
		t.Errorf("second = %+v, first = %+v", second, first)
	}
}

func TestRefresh_EmptyStore(t *testing.T) {
	t.Parallel()

	res, err := newTestService(newMockStore(), ServiceHooks{}).Refresh(context.Background(), t0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(res.Active) != 0 || len(res.Archived) != 0 {
		t.Errorf("res = %+v, want empty lists", res)
	}
}

func TestRefresh_LoadFailure(t *testing.T) {
	t.Parallel()

	m := newMockStore()
	m.loadErr = errors.New("disk gone")

	var op string
	svc := newTestService(m, ServiceHooks{OnStoreError: func(o string, _ error) { op = o }})

	_, err := svc.Refresh(context.Background(), t0)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if op != "load_active" {
		t.Errorf("OnStoreError op = %q, want load_active", op)
	}
}

func TestUpdateStatus_CompletesAndNotifies(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")})
	notified := 0
	svc := newTestService(m, ServiceHooks{OnNotify: func(*Notification) { notified++ }})

	res, err := svc.UpdateStatus(context.Background(), "r1", StatusCompleted, t0)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got := res.Active[0]
	if got.Status != StatusCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(t0) {
		t.Errorf("report = %+v, want Completed at %v", got, t0)
	}
	if m.active[0].Status != StatusCompleted {
		t.Error("status not persisted")
	}
	if res.Notification == nil || res.Notification.UserEmail != "a@x.com" || res.Notification.ID != "n-fixed" {
		t.Errorf("Notification = %+v", res.Notification)
	}
	if len(m.inbox) != 1 || notified != 1 {
		t.Errorf("inbox = %d, notified = %d, want exactly one", len(m.inbox), notified)
	}
}

func TestUpdateStatus_AnonymousAuthorNoNotification(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview})
	svc := newTestService(m, ServiceHooks{})

	res, err := svc.UpdateStatus(context.Background(), "r1", StatusInProgress, t0)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if res.Notification != nil || len(m.inbox) != 0 {
		t.Errorf("expected no notification, got %+v", res.Notification)
	}
	if m.active[0].Status != StatusInProgress {
		t.Error("status not persisted")
	}
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusInProgress, AuthorEmail: strptr("a@x.com")})
	svc := newTestService(m, ServiceHooks{})

	res, err := svc.UpdateStatus(context.Background(), "r1", StatusInProgress, t0)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if m.writes != 0 || len(m.inbox) != 0 || res.Notification != nil {
		t.Errorf("writes=%d inbox=%d, want no effect", m.writes, len(m.inbox))
	}
}

func TestUpdateStatus_LeavingCompletedClearsTimestamp(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusCompleted, CompletedAt: &t0})
	svc := newTestService(m, ServiceHooks{})

	res, err := svc.UpdateStatus(context.Background(), "r1", StatusUnderReview, t0.Add(day))
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if res.Active[0].CompletedAt != nil {
		t.Error("CompletedAt should be cleared")
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview})
	svc := newTestService(m, ServiceHooks{})

	_, err := svc.UpdateStatus(context.Background(), "gone", StatusCompleted, t0)
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
	if m.writes != 0 {
		t.Error("store written for missing report")
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview})
	_, err := newTestService(m, ServiceHooks{}).UpdateStatus(context.Background(), "r1", Status("Lost"), t0)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestUpdateStatus_WriteFailureDoesNotNotify(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")})
	m.writeErr = errors.New("read-only")
	svc := newTestService(m, ServiceHooks{})

	_, err := svc.UpdateStatus(context.Background(), "r1", StatusCompleted, t0)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if len(m.inbox) != 0 {
		t.Error("notification appended despite failed write")
	}
}

func TestUpdateStatus_AppendFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "r1", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")})
	m.appendErr = errors.New("inbox full")

	var op string
	svc := newTestService(m, ServiceHooks{OnStoreError: func(o string, _ error) { op = o }})

	res, err := svc.UpdateStatus(context.Background(), "r1", StatusCompleted, t0)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if res.Notification != nil {
		t.Error("Notification set although append failed")
	}
	if m.active[0].Status != StatusCompleted {
		t.Error("status change lost")
	}
	if op != "append_notification" {
		t.Errorf("OnStoreError op = %q, want append_notification", op)
	}
}

func TestUpdatePriority(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "r1", Status: StatusInProgress},
		Report{ID: "r2", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")},
	)
	svc := newTestService(m, ServiceHooks{})
	ctx := context.Background()

	active, err := svc.UpdatePriority(ctx, "r2", PriorityUrgent)
	if err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	if active[1].Priority != PriorityUrgent || m.active[1].Priority != PriorityUrgent {
		t.Errorf("priority not applied: %+v", active[1])
	}
	if active[1].Status != StatusUnderReview {
		t.Error("status changed by priority update")
	}
	if len(m.inbox) != 0 {
		t.Error("priority update notified author")
	}

	if _, err := svc.UpdatePriority(ctx, "gone", PriorityLow); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("err = %v, want ErrReportNotFound", err)
	}
	if _, err := svc.UpdatePriority(ctx, "r1", Priority("Critical")); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("err = %v, want ErrInvalidPriority", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "a"}, Report{ID: "b"}, Report{ID: "c"})
	var results []bool
	svc := newTestService(m, ServiceHooks{OnDelete: func(found bool) { results = append(results, found) }})
	ctx := context.Background()

	active, err := svc.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "c" {
		t.Errorf("active = %+v, want [a c]", active)
	}

	writes := m.writes
	active, err = svc.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if len(active) != 2 || m.writes != writes {
		t.Errorf("deleting an absent id changed state")
	}
	if len(results) != 2 || !results[0] || results[1] {
		t.Errorf("OnDelete results = %v, want [true false]", results)
	}
}

func TestDeleteOwn(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "a", AuthorEmail: strptr("Ana@Example.com")},
		Report{ID: "b", AuthorEmail: strptr("bia@example.com")},
		Report{ID: "c", AuthorEmail: strptr("ana@example.com")},
		Report{ID: "d"},
	)
	var results []bool
	svc := newTestService(m, ServiceHooks{OnDelete: func(found bool) { results = append(results, found) }})
	ctx := context.Background()

	mine, err := svc.DeleteOwn(ctx, "a", "ana@example.com")
	if err != nil {
		t.Fatalf("DeleteOwn: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "c" {
		t.Errorf("remaining = %+v, want [c]", mine)
	}
	if len(m.active) != 3 {
		t.Errorf("active = %+v, want 3 reports left", m.active)
	}

	writes := m.writes
	mine, err = svc.DeleteOwn(ctx, "a", "ana@example.com")
	if err != nil {
		t.Fatalf("repeat DeleteOwn: %v", err)
	}
	if len(mine) != 1 || m.writes != writes {
		t.Errorf("deleting an absent id changed state")
	}

	for _, id := range []string{"b", "d"} {
		if _, err := svc.DeleteOwn(ctx, id, "ana@example.com"); !errors.Is(err, ErrNotAuthor) {
			t.Errorf("DeleteOwn(%s) err = %v, want ErrNotAuthor", id, err)
		}
	}
	if len(m.active) != 3 || m.writes != writes {
		t.Errorf("refused delete changed state: %+v", m.active)
	}
	if len(results) != 2 || !results[0] || results[1] {
		t.Errorf("OnDelete results = %v, want [true false]", results)
	}
}

func TestArchive_PrependsToArchive(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "a", Status: StatusInProgress}, Report{ID: "b", Status: StatusUnderReview})
	m.archived = []Report{{ID: "old"}}
	svc := newTestService(m, ServiceHooks{})

	lists, err := svc.Archive(context.Background(), "a")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(lists.Active) != 1 || lists.Active[0].ID != "b" {
		t.Errorf("Active = %+v, want [b]", lists.Active)
	}
	if len(lists.Archived) != 2 || lists.Archived[0].ID != "a" || lists.Archived[1].ID != "old" {
		t.Errorf("Archived = %+v, want [a old]", lists.Archived)
	}
	if lists.Archived[0].Status != StatusInProgress {
		t.Error("archived report altered")
	}
	if m.writes != 1 {
		t.Errorf("writes = %d, want one atomic write", m.writes)
	}
}

func TestArchive_NotActive(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "a"})
	m.archived = []Report{{ID: "z"}}
	svc := newTestService(m, ServiceHooks{})

	_, err := svc.Archive(context.Background(), "z")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
	if len(m.active) != 1 || len(m.archived) != 1 || m.writes != 0 {
		t.Errorf("lists changed: active=%d archived=%d writes=%d", len(m.active), len(m.archived), m.writes)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	m := newMockStore(Report{ID: "a"})
	m.archived = []Report{{ID: "z"}}
	svc := newTestService(m, ServiceHooks{})
	ctx := context.Background()

	r, archived, err := svc.Get(ctx, "a")
	if err != nil || r.ID != "a" || archived {
		t.Errorf("Get(a) = %+v, %v, %v", r, archived, err)
	}
	r, archived, err = svc.Get(ctx, "z")
	if err != nil || r.ID != "z" || !archived {
		t.Errorf("Get(z) = %+v, %v, %v", r, archived, err)
	}
	if _, _, err := svc.Get(ctx, "nope"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Get(nope) err = %v, want ErrReportNotFound", err)
	}
}

func TestReportsBy(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "a", AuthorEmail: strptr("a@x.com")},
		Report{ID: "b"},
		Report{ID: "c", AuthorEmail: strptr("b@x.com")},
		Report{ID: "d", AuthorEmail: strptr("a@x.com")},
	)
	got, err := newTestService(m, ServiceHooks{}).ReportsBy(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ReportsBy: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "d" {
		t.Errorf("ReportsBy = %+v, want [a d]", got)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "a", AddressLocation: "Rua A, Centro - Recife"},
		Report{ID: "b", AddressLocation: "Rua B, Centro - Recife"},
	)
	got, err := newTestService(m, ServiceHooks{}).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(got) != 1 || got[0] != (RegionCount{Region: "Centro", Count: 2}) {
		t.Errorf("Summary = %+v", got)
	}
}

func TestInbox_ListsThenMarksRead(t *testing.T) {
	t.Parallel()

	m := newMockStore(
		Report{ID: "r1", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")},
		Report{ID: "r2", Status: StatusUnderReview, AuthorEmail: strptr("a@x.com")},
	)
	svc := newTestService(m, ServiceHooks{})
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, "r1", StatusInProgress, t0); err != nil {
		t.Fatalf("UpdateStatus r1: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "r2", StatusCompleted, t0.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateStatus r2: %v", err)
	}

	unread, err := svc.UnreadCount(ctx, "a@x.com")
	if err != nil || unread != 2 {
		t.Fatalf("UnreadCount = %d, %v, want 2", unread, err)
	}

	list, err := svc.Inbox(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if len(list) != 2 || list[0].ReportID != "r2" {
		t.Fatalf("Inbox = %+v, want newest first", list)
	}
	for _, n := range list {
		if n.Read {
			t.Error("Inbox should return notifications as they were before marking")
		}
	}

	unread, err = svc.UnreadCount(ctx, "a@x.com")
	if err != nil || unread != 0 {
		t.Errorf("UnreadCount after Inbox = %d, %v, want 0", unread, err)
	}
}

func TestInbox_EmptySkipsMarkRead(t *testing.T) {
	t.Parallel()

	m := newMockStore()
	m.writeErr = errors.New("should not be called")

	list, err := newTestService(m, ServiceHooks{}).Inbox(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Inbox = %+v, want empty", list)
	}
}

func TestService_ConcurrentOperations(t *testing.T) {
	t.Parallel()

	m := newMockStore()
	for i := range 20 {
		m.active = append(m.active, Report{ID: string(rune('a' + i)), Status: StatusCompleted, CompletedAt: &t0})
	}
	svc := newTestService(m, ServiceHooks{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Refresh(ctx, t0.Add(40*day))
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Archive(ctx, string(rune('a'+i)))
		}()
	}
	wg.Wait()

	if len(m.active) != 0 || len(m.archived) != 20 {
		t.Errorf("active=%d archived=%d, want 0 and 20", len(m.active), len(m.archived))
	}
}
