package directory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/observability"
	"github.com/loangraph/marketsync/internal/poll"
)

const displayNameFallbackLen = 10

var ErrNotLoaded = errors.New("directory_not_loaded")

type Fetcher interface {
	You(ctx context.Context) (*market.User, error)
	Users(ctx context.Context) ([]market.User, error)
}

// Directory owns the current user and the user directory. Both are refreshed
// by Run; every view reads them through here.
type Directory struct {
	fetcher  Fetcher
	strategy poll.Strategy
	logger   *slog.Logger

	meSeq    poll.Sequence
	usersSeq poll.Sequence

	mu          sync.RWMutex
	me          *market.User
	meLoaded    bool
	users       map[string]*market.User
	usersLoaded bool

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func New(fetcher Fetcher, strategy poll.Strategy, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Directory{
		fetcher:  fetcher,
		strategy: strategy,
		logger:   logger,
		me:       &market.User{},
		users:    map[string]*market.User{},
		subs:     map[int]func(){},
	}
}

// Run refreshes on every trigger of the strategy until ctx is done.
func (d *Directory) Run(ctx context.Context) error {
	poll.Run(ctx, d.strategy, func(ctx context.Context) {
		if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("directory refresh failed", "err", err)
		}
	})
	return ctx.Err()
}

// Refresh fetches the current user and the directory in parallel. Each half
// commits on its own, so one failing does not hold back the other.
func (d *Directory) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	var meErr, usersErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		meErr = d.refreshMe(ctx)
	}()
	go func() {
		defer wg.Done()
		usersErr = d.refreshUsers(ctx)
	}()
	wg.Wait()

	if meErr == nil || usersErr == nil {
		d.notify()
	}
	return errors.Join(meErr, usersErr)
}

func (d *Directory) refreshMe(ctx context.Context) error {
	n := d.meSeq.Next()
	you, err := d.fetcher.You(ctx)
	if err != nil {
		return err
	}
	d.meSeq.Commit(n, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		mergeUser(d.me, you)
		d.meLoaded = true
	})
	return nil
}

// mergeUser copies the fields the reply carries onto dst in place. Empty
// strings are treated as absent and keep the previous value.
func mergeUser(dst, src *market.User) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.Role != "" {
		dst.Role = src.Role
	}
	if src.DisplayName != "" {
		dst.DisplayName = src.DisplayName
	}
	dst.Online = src.Online
}

func (d *Directory) refreshUsers(ctx context.Context) error {
	n := d.usersSeq.Next()
	users, err := d.fetcher.Users(ctx)
	if err != nil {
		return err
	}
	d.usersSeq.Commit(n, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		clear(d.users)
		for i := range users {
			u := users[i]
			d.users[u.ID] = &u
		}
		d.usersLoaded = true
	})
	return nil
}

// Me returns a copy of the current user.
func (d *Directory) Me() (market.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *d.me, d.meLoaded
}

func (d *Directory) User(id string) (market.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return market.User{}, false
	}
	return *u, true
}

// Users returns the directory sorted by id.
func (d *Directory) Users() []market.User {
	d.mu.RLock()
	out := make([]market.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DisplayName never fails: unknown ids, and every id before the first
// refresh, render as their last ten characters.
func (d *Directory) DisplayName(id string) string {
	if u, ok := d.User(id); ok && u.DisplayName != "" {
		return u.DisplayName
	}
	return ShortID(id)
}

func ShortID(id string) string {
	if len(id) <= displayNameFallbackLen {
		return id
	}
	return id[len(id)-displayNameFallbackLen:]
}

// OnlineBanks lists financial institutions that are currently online.
func (d *Directory) OnlineBanks() []market.User {
	var out []market.User
	for _, u := range d.Users() {
		if u.Role == market.RoleFinancialInstitution && u.Online {
			out = append(out, u)
		}
	}
	return out
}

// Ping reports whether both halves have loaded at least once.
func (d *Directory) Ping(_ context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.meLoaded || !d.usersLoaded {
		return ErrNotLoaded
	}
	return nil
}

// Subscribe registers fn to run after every refresh that committed
// something. The returned func removes it.
func (d *Directory) Subscribe(fn func()) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Directory) notify() {
	d.subMu.Lock()
	fns := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
