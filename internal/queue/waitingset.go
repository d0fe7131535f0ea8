package queue

import "github.com/gangsched/gangsched/internal/gang"

// WaitingSet is the waiting-for-event set (component E): tickets belonging to
// event-triggered domains that are inactive, awaiting an external trigger. Keyed by
// domain id, O(1) expected insert/remove/lookup (spec.md §4.2).
type WaitingSet struct {
	byDomain map[gang.DomainID]*gang.Ticket
}

// NewWaitingSet returns an empty waiting-for-event set.
func NewWaitingSet() *WaitingSet {
	return &WaitingSet{byDomain: make(map[gang.DomainID]*gang.Ticket)}
}

// Len returns the number of tickets presently parked.
func (s *WaitingSet) Len() int { return len(s.byDomain) }

// Insert parks t in the waiting set.
func (s *WaitingSet) Insert(t *gang.Ticket) {
	t.Location = gang.LocationWaitingSet
	t.Flags |= gang.FlagWasWaitingForEvent
	s.byDomain[t.Domain.ID] = t
}

// Remove excises the ticket belonging to domain id, if present, zeroing its location.
func (s *WaitingSet) Remove(id gang.DomainID) *gang.Ticket {
	t, ok := s.byDomain[id]
	if !ok {
		return nil
	}
	delete(s.byDomain, id)
	t.Location = gang.LocationNone
	return t
}

// Lookup returns the ticket parked for domain id, if any.
func (s *WaitingSet) Lookup(id gang.DomainID) (*gang.Ticket, bool) {
	t, ok := s.byDomain[id]
	return t, ok
}
