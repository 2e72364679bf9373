package runtime

import (
	"clip-queue/domain"
	"time"

	"github.com/samber/lo"
)

// member is one authenticated connection. Only the coordinator goroutine reads or writes it.
type member struct {
	domain.Member
	link          *link
	authenticated bool
	lastHeartbeat time.Time
	missedPongs   int
	fullStreak    int
}

// Registry keeps live members in join order.
// It carries no lock: the coordinator is its single owner.
type Registry struct {
	order []domain.MemberID
	byID  map[domain.MemberID]*member
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[domain.MemberID]*member)}
}

// Add registers a member once its handshake completed. An unauthenticated member is refused.
func (r *Registry) Add(m *member) bool {
	if !m.authenticated {
		return false
	}
	if _, ok := r.byID[m.ID]; !ok {
		r.order = append(r.order, m.ID)
	}
	r.byID[m.ID] = m
	return true
}

func (r *Registry) Remove(id domain.MemberID) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	r.order = lo.Without(r.order, id)
}

func (r *Registry) Get(id domain.MemberID) (*member, bool) {
	m, ok := r.byID[id]
	return m, ok
}

func (r *Registry) Has(id domain.MemberID) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// All returns members in join order.
func (r *Registry) All() []*member {
	return lo.Map(r.order, func(id domain.MemberID, _ int) *member { return r.byID[id] })
}

// Others returns every member except the given ids.
func (r *Registry) Others(except ...domain.MemberID) []*member {
	return lo.Filter(r.All(), func(m *member, _ int) bool { return !lo.Contains(except, m.ID) })
}

// LastSeen reports when the member last answered a ping, or joined.
func (r *Registry) LastSeen(id domain.MemberID) (time.Time, bool) {
	m, ok := r.byID[id]
	if !ok {
		return time.Time{}, false
	}
	return m.lastHeartbeat, true
}

// Snapshot renders the wire member list with self first.
func (r *Registry) Snapshot(self domain.Member) []domain.Member {
	return append([]domain.Member{self}, lo.Map(r.All(), func(m *member, _ int) domain.Member { return m.Member })...)
}
