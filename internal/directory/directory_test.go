package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
)

type usersResponse struct {
	users []market.User
	wait  chan struct{}
}

type fakeFetcher struct {
	mu       sync.Mutex
	me       *market.User
	meErr    error
	usersErr error
	queue    []usersResponse
	usersNow []market.User
}

func (f *fakeFetcher) You(_ context.Context) (*market.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	cp := *f.me
	return &cp, nil
}

func (f *fakeFetcher) Users(ctx context.Context) ([]market.User, error) {
	f.mu.Lock()
	if f.usersErr != nil {
		f.mu.Unlock()
		return nil, f.usersErr
	}
	if len(f.queue) == 0 {
		users := f.usersNow
		f.mu.Unlock()
		return users, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	if next.wait != nil {
		select {
		case <-next.wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return next.users, nil
}

func TestDisplayNameFallsBackToShortID(t *testing.T) {
	f := &fakeFetcher{
		me:       &market.User{ID: "me", Role: market.RoleBorrower},
		usersNow: []market.User{{ID: "aaaaaaaaaaaaaaaaaaaa-known", Role: market.RoleInvestor, DisplayName: "Known Investor"}},
	}
	d := New(f, poll.NewManual(), nil)

	if got := d.DisplayName("aaaaaaaaaaaaaaaaaaaa-known"); got != "aaaa-known" {
		t.Fatalf("expected fallback before load, got %q", got)
	}
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := d.DisplayName("aaaaaaaaaaaaaaaaaaaa-known"); got != "Known Investor" {
		t.Fatalf("expected directory name, got %q", got)
	}
	if got := d.DisplayName("0123456789ABCDEFGHIJ"); got != "ABCDEFGHIJ" {
		t.Fatalf("expected last 10 chars for unknown id, got %q", got)
	}
	if got := d.DisplayName("short"); got != "short" {
		t.Fatalf("expected short id unchanged, got %q", got)
	}
}

func TestRefreshKeepsMePointerAndReplacesDirectory(t *testing.T) {
	f := &fakeFetcher{
		me: &market.User{ID: "me", Role: market.RoleInvestor, DisplayName: "Before"},
		usersNow: []market.User{
			{ID: "u1", Role: market.RoleBorrower},
			{ID: "u2", Role: market.RoleInvestor},
		},
	}
	d := New(f, poll.NewManual(), nil)
	held := d.me

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	f.mu.Lock()
	f.me = &market.User{ID: "me", Role: market.RoleInvestor, DisplayName: "After"}
	f.usersNow = []market.User{{ID: "u2", Role: market.RoleInvestor}}
	f.mu.Unlock()
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if d.me != held || held.DisplayName != "After" {
		t.Fatalf("expected me merged in place, got %+v", held)
	}
	if _, ok := d.User("u1"); ok {
		t.Fatalf("expected u1 dropped by full replace")
	}
	if users := d.Users(); len(users) != 1 || users[0].ID != "u2" {
		t.Fatalf("unexpected directory: %+v", users)
	}
}

func TestMeRefreshKeepsFieldsMissingFromReply(t *testing.T) {
	f := &fakeFetcher{me: &market.User{ID: "me", Role: market.RoleBorrower, DisplayName: "Bea", Online: true}}
	d := New(f, poll.NewManual(), nil)
	held := d.me

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	f.mu.Lock()
	f.me = &market.User{ID: "me", Online: false}
	f.mu.Unlock()
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	me, ok := d.Me()
	if !ok || d.me != held {
		t.Fatalf("expected the same record, loaded")
	}
	if me.Role != market.RoleBorrower || me.DisplayName != "Bea" || me.Online {
		t.Fatalf("expected role and name kept and online updated, got %+v", me)
	}
}

func TestStaleDirectoryResponseIsDropped(t *testing.T) {
	slow := make(chan struct{})
	f := &fakeFetcher{
		me: &market.User{ID: "me", Role: market.RoleInvestor},
		queue: []usersResponse{
			{users: []market.User{{ID: "old", Role: market.RoleBorrower}}, wait: slow},
			{users: []market.User{{ID: "new", Role: market.RoleBorrower}}},
		},
	}
	d := New(f, poll.NewManual(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Refresh(context.Background())
	}()
	// Let the first refresh claim the slow response before the second starts.
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		remaining := len(f.queue)
		f.mu.Unlock()
		if remaining == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	close(slow)
	<-done

	if _, ok := d.User("new"); !ok {
		t.Fatalf("expected newer snapshot to survive")
	}
	if _, ok := d.User("old"); ok {
		t.Fatalf("stale snapshot overwrote newer one")
	}
}

func TestRefreshCommitsHalvesIndependently(t *testing.T) {
	f := &fakeFetcher{
		meErr:    errors.New("you down"),
		usersNow: []market.User{{ID: "bank", Role: market.RoleFinancialInstitution, Online: true}, {ID: "bank-off", Role: market.RoleFinancialInstitution}},
	}
	d := New(f, poll.NewManual(), nil)

	notified := 0
	cancel := d.Subscribe(func() { notified++ })
	defer cancel()

	if err := d.Refresh(context.Background()); err == nil {
		t.Fatalf("expected joined error")
	}
	if banks := d.OnlineBanks(); len(banks) != 1 || banks[0].ID != "bank" {
		t.Fatalf("unexpected online banks: %+v", banks)
	}
	if _, loaded := d.Me(); loaded {
		t.Fatalf("me should not be loaded")
	}
	if err := d.Ping(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if notified != 1 {
		t.Fatalf("expected subscriber notified once, got %d", notified)
	}

	cancel()
	_ = d.Refresh(context.Background())
	if notified != 1 {
		t.Fatalf("expected no notification after unsubscribe")
	}
}

func TestRunRefreshesOnTrigger(t *testing.T) {
	f := &fakeFetcher{me: &market.User{ID: "me", Role: market.RoleBorrower}}
	trigger := poll.NewManual()
	d := New(f, trigger, nil)

	refreshed := make(chan struct{}, 1)
	d.Subscribe(func() {
		select {
		case refreshed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	trigger.Fire()
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatalf("expected refresh on trigger")
	}
	if me, ok := d.Me(); !ok || me.ID != "me" {
		t.Fatalf("unexpected me: %+v", me)
	}
}
