// Package kvstore implements report.Store and report.Inbox over a key-value
// blob backend. Each collection is one key holding a JSON array.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/civitas/internal/report"
)

// DefaultPrefix namespaces the collection keys.
const DefaultPrefix = "@FalaPovoApp:"

// Collection names, appended to the prefix to form keys.
const (
	CollectionActive        = "reports"
	CollectionArchived      = "archived_reports"
	CollectionNotifications = "notifications"
)

// Entry is one key/value pair for SetMany.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the backend contract. Get reports ok=false for an absent key.
// SetMany applies entries in order, in one transaction where the backend
// supports it.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, entries ...Entry) error
}

// MalformedFunc is called for each stored report skipped during decode.
type MalformedFunc func(collection string, index int, err error)

// Store is a report.Store and report.Inbox backed by a KV.
type Store struct {
	kv          KV
	prefix      string
	logger      log.Logger
	onMalformed MalformedFunc
}

var (
	_ report.Store = (*Store)(nil)
	_ report.Inbox = (*Store)(nil)
)

// New wraps kv. An empty prefix selects DefaultPrefix; onMalformed may be nil.
func New(kv KV, prefix string, logger log.Logger, onMalformed MalformedFunc) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{kv: kv, prefix: prefix, logger: logger, onMalformed: onMalformed}
}

// Key returns the full key for a collection.
func (s *Store) Key(collection string) string {
	return s.prefix + collection
}

// LoadActive implements report.Store.
func (s *Store) LoadActive(ctx context.Context) ([]report.Report, error) {
	return s.loadReports(ctx, CollectionActive)
}

// LoadArchived implements report.Store.
func (s *Store) LoadArchived(ctx context.Context) ([]report.Report, error) {
	return s.loadReports(ctx, CollectionArchived)
}

// ReplaceActive implements report.Store.
func (s *Store) ReplaceActive(ctx context.Context, reports []report.Report) error {
	return s.replaceReports(ctx, CollectionActive, reports)
}

// ReplaceArchived implements report.Store.
func (s *Store) ReplaceArchived(ctx context.Context, reports []report.Report) error {
	return s.replaceReports(ctx, CollectionArchived, reports)
}

// ReplaceBoth implements report.Store with a single SetMany, Active first.
func (s *Store) ReplaceBoth(ctx context.Context, active, archived []report.Report) error {
	a, err := s.encodeReplacing(ctx, CollectionActive, active)
	if err != nil {
		return err
	}
	b, err := s.encodeReplacing(ctx, CollectionArchived, archived)
	if err != nil {
		return err
	}
	err = s.kv.SetMany(ctx,
		Entry{Key: s.Key(CollectionActive), Value: a},
		Entry{Key: s.Key(CollectionArchived), Value: b},
	)
	if err != nil {
		return fmt.Errorf("%w: write %s+%s: %w", report.ErrStorageUnavailable, CollectionActive, CollectionArchived, err)
	}
	return nil
}

// Append implements report.Inbox. Newest notifications go first.
func (s *Store) Append(ctx context.Context, n *report.Notification) error {
	all, kept, err := s.loadNotifications(ctx)
	if err != nil {
		return err
	}
	next := make([]report.Notification, 0, len(all)+1)
	next = append(next, *n)
	next = append(next, all...)
	return s.replaceNotifications(ctx, next, kept)
}

// ListFor implements report.Inbox.
func (s *Store) ListFor(ctx context.Context, email string) ([]report.Notification, error) {
	all, _, err := s.loadNotifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]report.Notification, 0)
	for _, n := range all {
		if strings.EqualFold(n.UserEmail, email) {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkAllRead implements report.Inbox.
func (s *Store) MarkAllRead(ctx context.Context, email string) error {
	all, kept, err := s.loadNotifications(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range all {
		if strings.EqualFold(all[i].UserEmail, email) && !all[i].Read {
			all[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.replaceNotifications(ctx, all, kept)
}

func (s *Store) loadReports(ctx context.Context, collection string) ([]report.Report, error) {
	raw, ok, err := s.kv.Get(ctx, s.Key(collection))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", report.ErrStorageUnavailable, collection, err)
	}
	if !ok {
		return []report.Report{}, nil
	}

	reports, _, err := report.DecodeReports(raw, func(i int, err error) {
		s.logger.Warn(ctx, "skipping malformed report", "collection", collection, "index", i, "error", err)
		if s.onMalformed != nil {
			s.onMalformed(collection, i, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	if reports == nil {
		reports = []report.Report{}
	}
	return reports, nil
}

// encodeReplacing encodes reports for collection and carries forward any
// stored elements that did not decode, so a write never drops them. A
// stored blob that is not an array is never overwritten.
func (s *Store) encodeReplacing(ctx context.Context, collection string, reports []report.Report) ([]byte, error) {
	raw, ok, err := s.kv.Get(ctx, s.Key(collection))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", report.ErrStorageUnavailable, collection, err)
	}
	var kept []json.RawMessage
	if ok {
		if _, kept, err = report.DecodeReports(raw, nil); err != nil {
			return nil, fmt.Errorf("refusing to overwrite %s: %w", collection, err)
		}
	}
	if len(kept) > 0 {
		s.logger.Warn(ctx, "carrying undecodable reports forward", "collection", collection, "count", len(kept))
	}
	b, err := report.EncodeReports(reports, kept...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	return b, nil
}

func (s *Store) replaceReports(ctx context.Context, collection string, reports []report.Report) error {
	b, err := s.encodeReplacing(ctx, collection, reports)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.Key(collection), b); err != nil {
		return fmt.Errorf("%w: write %s: %w", report.ErrStorageUnavailable, collection, err)
	}
	return nil
}

// loadNotifications returns the decodable notifications and, raw, the
// elements that were skipped.
func (s *Store) loadNotifications(ctx context.Context) ([]report.Notification, []json.RawMessage, error) {
	raw, ok, err := s.kv.Get(ctx, s.Key(CollectionNotifications))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %w", report.ErrStorageUnavailable, CollectionNotifications, err)
	}
	if !ok || len(raw) == 0 {
		return []report.Notification{}, nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w: %w", CollectionNotifications, report.ErrMalformedRecord, err)
	}
	out := make([]report.Notification, 0, len(elems))
	var kept []json.RawMessage
	for i, e := range elems {
		var n report.Notification
		if err := json.Unmarshal(e, &n); err != nil || n.UserEmail == "" {
			if err == nil {
				err = fmt.Errorf("%w: notification without recipient", report.ErrMalformedRecord)
			}
			s.logger.Warn(ctx, "skipping malformed notification", "index", i, "error", err)
			if s.onMalformed != nil {
				s.onMalformed(CollectionNotifications, i, err)
			}
			kept = append(kept, e)
			continue
		}
		out = append(out, n)
	}
	return out, kept, nil
}

func (s *Store) replaceNotifications(ctx context.Context, all []report.Notification, kept []json.RawMessage) error {
	elems := make([]json.RawMessage, 0, len(all)+len(kept))
	for i := range all {
		b, err := json.Marshal(all[i])
		if err != nil {
			return fmt.Errorf("encode %s: %w", CollectionNotifications, err)
		}
		elems = append(elems, b)
	}
	elems = append(elems, kept...)
	b, err := json.Marshal(elems)
	if err != nil {
		return fmt.Errorf("encode %s: %w", CollectionNotifications, err)
	}
	if err := s.kv.Set(ctx, s.Key(CollectionNotifications), b); err != nil {
		return fmt.Errorf("%w: write %s: %w", report.ErrStorageUnavailable, CollectionNotifications, err)
	}
	return nil
}
