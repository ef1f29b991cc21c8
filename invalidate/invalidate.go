// Package invalidate provides operational cache invalidation: by key
// pattern, by registered tag, and by related entity.
//
// The tag index is process-local and best-effort: it is not persisted and
// not shared across instances, so in multi-instance deployments a tag
// invalidation only covers keys registered in this process. Deployments
// needing cross-instance tag invalidation should keep the tag sets in the
// shared L2 store instead.
package invalidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	gorawrcache "github.com/Keksclan/goRawrCache"
	"github.com/Keksclan/goRawrCache/key"
)

// ErrInvalidPattern reports a malformed invalidation pattern.
var ErrInvalidPattern = errors.New("invalidate: invalid pattern")

// Invalidator removes cache entries through a Manager and maintains the
// process-local tag index. All methods are safe for concurrent use.
type Invalidator struct {
	m   *gorawrcache.Manager
	log *zap.Logger

	mu   sync.Mutex
	tags map[string]map[string]struct{} // tag -> set of keys
}

// Option configures an Invalidator.
type Option func(*Invalidator)

// WithLogger sets the logger used for invalidation reporting.
func WithLogger(l *zap.Logger) Option {
	return func(i *Invalidator) {
		if l != nil {
			i.log = l
		}
	}
}

// New creates an Invalidator bound to the given Manager.
func New(m *gorawrcache.Manager, opts ...Option) *Invalidator {
	i := &Invalidator{
		m:    m,
		log:  zap.NewNop(),
		tags: make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// ByPattern removes every key matching the glob pattern. The whole L1 tier
// is cleared (it has no prefix index); the returned count covers backend
// deletions only. Malformed patterns fail with ErrInvalidPattern.
func (i *Invalidator) ByPattern(ctx context.Context, pattern string) (int, error) {
	if err := validatePattern(pattern); err != nil {
		return 0, err
	}
	n := i.m.InvalidatePattern(ctx, pattern)
	i.log.Info("pattern invalidation",
		zap.String("pattern", pattern),
		zap.Int("backend_removed", n),
	)
	return n, nil
}

// RegisterTag associates cacheKey with the given tags so a later ByTags
// call can remove it.
func (i *Invalidator) RegisterTag(cacheKey string, tags ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, tag := range tags {
		if tag == "" {
			continue
		}
		set, ok := i.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			i.tags[tag] = set
		}
		set[cacheKey] = struct{}{}
	}
}

// ByTags deletes every key registered under any of the given tags and
// drops those tags from the index. Returns the number of keys deleted.
func (i *Invalidator) ByTags(ctx context.Context, tags ...string) int {
	i.mu.Lock()
	keys := make(map[string]struct{})
	for _, tag := range tags {
		for k := range i.tags[tag] {
			keys[k] = struct{}{}
		}
		delete(i.tags, tag)
	}
	i.mu.Unlock()

	removed := 0
	for k := range keys {
		if i.m.Delete(ctx, k) {
			removed++
		}
	}
	i.log.Info("tag invalidation",
		zap.Strings("tags", tags),
		zap.Int("removed", removed),
	)
	return removed
}

// Related removes everything cached for one entity: its primary key plus
// every key under its namespace prefix.
func (i *Invalidator) Related(ctx context.Context, entityType, entityID string) (int, error) {
	if entityType == "" || entityID == "" {
		return 0, fmt.Errorf("%w: empty entity type or id", ErrInvalidPattern)
	}
	primary, err := i.m.Keys().Build(entityType, entityID)
	if err != nil {
		return 0, err
	}

	removed := 0
	if i.m.Delete(ctx, primary) {
		removed++
	}
	n, err := i.ByPattern(ctx, key.Prefix+":"+entityType+":"+entityID+":*")
	if err != nil {
		return removed, err
	}
	return removed + n, nil
}

// validatePattern rejects patterns that cannot match any key produced by
// this subsystem.
func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if strings.ContainsAny(pattern, " \t\n") {
		return fmt.Errorf("%w: contains whitespace: %q", ErrInvalidPattern, pattern)
	}
	if strings.Contains(pattern, "**") {
		return fmt.Errorf("%w: double wildcard: %q", ErrInvalidPattern, pattern)
	}
	return nil
}
