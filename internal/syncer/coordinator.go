package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/state"
)

// Fetcher retrieves sync summaries from the dispatch service.
type Fetcher interface {
	FetchSync(ctx context.Context, scope cad.SyncScope) (*cad.SyncResponse, error)
}

// Ensure the dispatch client satisfies Fetcher at compile time.
var _ Fetcher = (*cad.Client)(nil)

// Result is the outcome of one sync call.
type Result struct {
	Response *cad.SyncResponse
	// Skipped is set when a bounding-box sync was already covered by the
	// last synced box and nothing was fetched.
	Skipped bool
	// Shared is set when the call attached to a fetch already in flight.
	Shared bool
	// Stale is set when a full response older than the last applied sync
	// was discarded. Response is nil then.
	Stale bool
}

// Coordinator fetches sync summaries and merges them into the store.
// Concurrent calls for the same scope share one remote fetch.
type Coordinator struct {
	store *state.Store
	api   Fetcher
	log   logrus.FieldLogger

	group singleflight.Group

	mu      sync.Mutex
	lastBox *cad.BoundingBox

	nudge chan struct{}
}

// New returns a Coordinator writing into store.
func New(store *state.Store, api Fetcher, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		store: store,
		api:   api,
		log:   logging.OrDiscard(log),
		nudge: make(chan struct{}, 1),
	}
}

// SyncAll fetches everything and replaces the store contents.
func (c *Coordinator) SyncAll(ctx context.Context) (Result, error) {
	return c.Sync(ctx, cad.FullScope())
}

// SyncPatrolGroup fetches the entities of one patrol group.
func (c *Coordinator) SyncPatrolGroup(ctx context.Context, group string) (Result, error) {
	if strings.TrimSpace(group) == "" {
		return Result{}, fmt.Errorf("%w: patrol group required", cad.ErrSyncFailed)
	}
	return c.Sync(ctx, cad.PatrolGroupScope(group))
}

// SyncBoundingBox fetches the entities inside box. Unless force is set, a box
// already covered by the last synced box returns a Skipped result.
func (c *Coordinator) SyncBoundingBox(ctx context.Context, box cad.BoundingBox, force bool) (Result, error) {
	if !box.Valid() {
		return Result{}, fmt.Errorf("%w: invalid bounding box %s|%s", cad.ErrSyncFailed, box.NorthWest, box.SouthEast)
	}
	if !force {
		c.mu.Lock()
		covered := c.lastBox != nil && c.lastBox.Contains(box)
		c.mu.Unlock()
		if covered {
			return Result{Skipped: true}, nil
		}
	}
	return c.Sync(ctx, cad.BoundingBoxScope(box))
}

// Sync fetches scope, attaching to an in-flight fetch with the same scope key
// if there is one. Cancelling ctx stops the wait but not the shared fetch,
// whose result is still applied to the store.
func (c *Coordinator) Sync(ctx context.Context, scope cad.SyncScope) (Result, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(scope.Key(), func() (any, error) {
		return c.fetch(fetchCtx, scope)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{Shared: res.Shared}, res.Err
		}
		r := res.Val.(Result)
		r.Shared = res.Shared
		return r, nil
	}
}

func (c *Coordinator) fetch(ctx context.Context, scope cad.SyncScope) (Result, error) {
	log := c.log.WithField("scope", scope.Key())
	resp, err := c.api.FetchSync(ctx, scope)
	if err == nil && resp == nil {
		err = errors.New("empty sync response")
	}
	if err != nil {
		c.store.RecordFailure(err)
		log.WithError(err).Warn("sync failed")
		return Result{}, fmt.Errorf("%w: %w", cad.ErrSyncFailed, err)
	}

	full := scope.Kind == cad.ScopeFull
	if err := c.store.Upsert(resp, full); err != nil {
		if errors.Is(err, cad.ErrStaleSync) {
			log.WithError(err).Warn("discarded stale sync")
			return Result{Stale: true}, nil
		}
		return Result{}, err
	}

	if scope.Kind == cad.ScopeBoundingBox {
		box := scope.Box
		c.mu.Lock()
		c.lastBox = &box
		c.mu.Unlock()
	}
	log.WithFields(logrus.Fields{
		"incidents": len(resp.Incidents),
		"resources": len(resp.Resources),
	}).Debug("sync applied")
	return Result{Response: resp}, nil
}

// LastBox returns the last successfully synced bounding box.
func (c *Coordinator) LastBox() (cad.BoundingBox, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastBox == nil {
		return cad.BoundingBox{}, false
	}
	return *c.lastBox, true
}

// Reset forgets the last synced bounding box.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.lastBox = nil
	c.mu.Unlock()
}

// Nudge asks a running poll loop to sync now. It never blocks; nudges that
// arrive while one is pending are merged.
func (c *Coordinator) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}
