package views

import (
	"context"
	"sort"
	"sync"

	"github.com/loangraph/marketsync/internal/market"
)

var roleViews = map[market.Role][]string{
	market.RoleBorrower:             {NameBorrowerMortgages, NameBorrowerCampaigns, NameProfile, NameBlocks},
	market.RoleFinancialInstitution: {NameBankerMortgages, NameBankerCampaigns, NameBlocks},
	market.RoleInvestor:             {NameInvestorCampaigns, NameProfile, NameBlocks},
}

// ForRole lists the views a user with role can open.
func ForRole(role market.Role) []string {
	return append([]string(nil), roleViews[role]...)
}

// Set owns every view of the console and keeps the ones matching the current
// role running.
type Set struct {
	mu     sync.Mutex
	views  map[string]View
	role   market.Role
	active map[string]bool
}

func NewSet(vs ...View) *Set {
	s := &Set{views: map[string]View{}, active: map[string]bool{}}
	for _, v := range vs {
		s.views[v.Name()] = v
	}
	return s
}

func (s *Set) Get(name string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[name]
	return v, ok
}

// Active reports whether name is running for the current role.
func (s *Set) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[name]
}

func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.views))
	for name := range s.views {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Activate starts the views of role and stops every other one. Switching to
// the role already active is a no-op.
func (s *Set) Activate(ctx context.Context, role market.Role) {
	s.mu.Lock()
	if role == s.role && len(s.active) > 0 {
		s.mu.Unlock()
		return
	}
	s.role = role
	want := map[string]bool{}
	for _, name := range roleViews[role] {
		if _, ok := s.views[name]; ok {
			want[name] = true
		}
	}
	var stop, start []View
	for name, v := range s.views {
		switch {
		case s.active[name] && !want[name]:
			stop = append(stop, v)
		case !s.active[name] && want[name]:
			start = append(start, v)
		}
	}
	s.active = want
	s.mu.Unlock()

	for _, v := range stop {
		v.Stop()
	}
	for _, v := range start {
		v.Start(ctx)
	}
}

// StopAll tears every view down.
func (s *Set) StopAll() {
	s.mu.Lock()
	vs := make([]View, 0, len(s.views))
	for _, v := range s.views {
		vs = append(vs, v)
	}
	s.active = map[string]bool{}
	s.role = ""
	s.mu.Unlock()

	for _, v := range vs {
		v.Stop()
	}
}
