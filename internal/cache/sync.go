// Package cache keeps computed group views consistent with concurrent
// writes. Every group has a version counter stored next to its data and bumped
// in the same transaction as each write; memoized views are only served while
// their version is still current.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"cuadra/internal/events"
	"cuadra/internal/logger"
)

// ScopeKey identifies one user's view of a group month.
type ScopeKey struct {
	UserID  string
	GroupID string
	Year    int
	Month   int
	// Day is the civil date (YYYY-MM-DD) a view is evaluated on. Views whose
	// content depends on today carry it; a view computed on another day is a
	// different view even at the same version.
	Day string
}

func (k ScopeKey) memoKey(view string) string {
	return fmt.Sprintf("%s|%s|%04d-%02d|%s|%s", k.GroupID, k.UserID, k.Year, k.Month, k.Day, view)
}

// Tag is the token a client holds for a view: the group version plus the day
// the view was evaluated on.
type Tag struct {
	Version int64
	Day     string
}

// String renders the tag as "<version>" or "<version>-<day>".
func (t Tag) String() string {
	v := strconv.FormatInt(t.Version, 10)
	if t.Day == "" {
		return v
	}
	return v + "-" + t.Day
}

// ParseTag reverses Tag.String. Unparseable input reports false.
func ParseTag(s string) (Tag, bool) {
	version, day, _ := strings.Cut(s, "-")
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil || v < 0 {
		return Tag{}, false
	}
	if day != "" {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return Tag{}, false
		}
	}
	return Tag{Version: v, Day: day}, true
}

// ReadOptions controls how Load treats the memo.
type ReadOptions struct {
	// LastSeen is the tag the client already holds, if any.
	LastSeen *Tag
	// Force skips both the not-modified shortcut and the memo.
	Force bool
}

// Result is a view together with the version it was computed at.
type Result[T any] struct {
	Value       T
	Version     int64
	Day         string
	NotModified bool
	Cached      bool
}

// Tag returns the token identifying this result.
func (r Result[T]) Tag() Tag {
	return Tag{Version: r.Version, Day: r.Day}
}

// Change lists the group versions produced by one write.
type Change struct {
	UserID   string
	Versions map[string]int64
}

// Version returns the highest version in the change, or 0 when no group was
// bumped.
func (c Change) Version() int64 {
	var highest int64
	for _, v := range c.Versions {
		if v > highest {
			highest = v
		}
	}
	return highest
}

type entry struct {
	version int64
	value   interface{}
}

// Sync owns the version counters and the memo of computed views.
type Sync struct {
	db        *gorm.DB
	memo      *LRUCache[entry]
	storeMu   sync.Mutex
	flight    singleflight.Group
	publisher events.Publisher
}

// NewSync creates the cache layer. A nil publisher disables broadcasting.
func NewSync(db *gorm.DB, size int, ttl time.Duration, publisher events.Publisher) *Sync {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Sync{
		db:        db,
		memo:      NewLRUCache[entry](size, ttl),
		publisher: publisher,
	}
}

// CurrentVersion returns the version of the key's group.
func (s *Sync) CurrentVersion(ctx context.Context, key ScopeKey) (int64, error) {
	return GroupVersion(s.db.WithContext(ctx), key.GroupID)
}

// InvalidateTx bumps versions inside the caller's transaction. With a group
// only that group is bumped; without one every group where the user is an
// active member is.
func (s *Sync) InvalidateTx(tx *gorm.DB, userID string, groupID *string) (Change, error) {
	change := Change{UserID: userID}
	if groupID != nil {
		v, err := BumpGroup(tx, *groupID)
		if err != nil {
			return Change{}, err
		}
		change.Versions = map[string]int64{*groupID: v}
		return change, nil
	}

	versions, err := BumpUserGroups(tx, userID)
	if err != nil {
		return Change{}, err
	}
	change.Versions = versions
	return change, nil
}

// Invalidate bumps versions in its own transaction and announces the change.
func (s *Sync) Invalidate(ctx context.Context, userID string, groupID *string) (Change, error) {
	var change Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.InvalidateTx(tx, userID, groupID)
		return err
	})
	if err != nil {
		return Change{}, err
	}
	s.Announce(ctx, change)
	return change, nil
}

// Announce evicts local memo entries for the changed groups and tells the
// other replicas to do the same. Call it after the transaction commits.
// Publish failures are logged and otherwise ignored.
func (s *Sync) Announce(ctx context.Context, change Change) {
	for groupID, version := range change.Versions {
		s.Evict(groupID)
		if err := s.publisher.PublishInvalidation(ctx, events.NewInvalidation(groupID, change.UserID, version)); err != nil {
			logger.Named("cache").Warnw("Failed to publish invalidation", "group_id", groupID, "version", version, "error", err)
		}
	}
}

// Evict drops every memo entry of a group and returns how many were removed.
func (s *Sync) Evict(groupID string) int {
	prefix := groupID + "|"
	return s.memo.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// HandleInvalidation evicts the group named by a message from another
// replica.
func (s *Sync) HandleInvalidation(msg *events.Invalidation) error {
	n := s.Evict(msg.GroupID)
	logger.Named("cache").Debugw("Evicted memo entries", "group_id", msg.GroupID, "version", msg.Version, "count", n)
	return nil
}

// RunJanitor removes expired memo entries every interval until ctx is done.
func (s *Sync) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.memo.CleanExpired(); n > 0 {
				logger.Named("cache").Debugw("Cleaned expired memo entries", "count", n)
			}
		}
	}
}

func (s *Sync) store(memoKey string, version int64, value interface{}) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if existing, ok := s.memo.Get(memoKey); ok && existing.version > version {
		return
	}
	s.memo.Set(memoKey, entry{version: version, value: value})
}

// Load returns the view named by key and view, computing it only when the
// memo has nothing for the current version. The version is read before
// compute runs, so a stored view is never older than its version. Concurrent
// loads of the same key and version share one compute call.
func Load[T any](ctx context.Context, s *Sync, key ScopeKey, view string, opts ReadOptions, compute func(ctx context.Context) (T, error)) (Result[T], error) {
	version, err := s.CurrentVersion(ctx, key)
	if err != nil {
		return Result[T]{}, err
	}

	if !opts.Force && opts.LastSeen != nil && *opts.LastSeen == (Tag{Version: version, Day: key.Day}) {
		return Result[T]{Version: version, Day: key.Day, NotModified: true}, nil
	}

	memoKey := key.memoKey(view)
	if !opts.Force {
		if e, ok := s.memo.Get(memoKey); ok && e.version == version {
			if value, ok := e.value.(T); ok {
				return Result[T]{Value: value, Version: version, Day: key.Day, Cached: true}, nil
			}
		}
	}

	v, err, _ := s.flight.Do(fmt.Sprintf("%s@%d", memoKey, version), func() (interface{}, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.store(memoKey, version, value)
		return value, nil
	})
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Value: v.(T), Version: version, Day: key.Day}, nil
}
