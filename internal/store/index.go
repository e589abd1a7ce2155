package store

import (
	"sort"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Index is the derived lookup structure over the ticket list: channel → position
// and user → positions of their open tickets. Positions index the store's ticket
// slice. It is never persisted.
type Index struct {
	byChannel  map[string]int
	openByUser map[string][]int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byChannel:  make(map[string]int),
		openByUser: make(map[string][]int),
	}
}

// BuildIndex returns a fresh index over tickets.
func BuildIndex(tickets []domain.Ticket) *Index {
	idx := NewIndex()
	idx.Rebuild(tickets)
	return idx
}

// Rebuild recomputes the index from scratch.
func (x *Index) Rebuild(tickets []domain.Ticket) {
	x.byChannel = make(map[string]int, len(tickets))
	x.openByUser = make(map[string][]int)
	for pos := range tickets {
		t := &tickets[pos]
		if ch := t.Channel(); ch != "" {
			x.byChannel[ch] = pos
		}
		if t.IsOpen() {
			x.openByUser[t.UserID] = append(x.openByUser[t.UserID], pos)
		}
	}
}

// OnAppended records a ticket newly appended at pos.
func (x *Index) OnAppended(pos int, t *domain.Ticket) {
	if ch := t.Channel(); ch != "" {
		x.byChannel[ch] = pos
	}
	if t.IsOpen() {
		x.addOpen(t.UserID, pos)
	}
}

// OnChannelAssigned moves the channel mapping of the ticket at pos.
func (x *Index) OnChannelAssigned(pos int, oldChannel, newChannel string) {
	if oldChannel == newChannel {
		return
	}
	if oldChannel != "" {
		if cur, ok := x.byChannel[oldChannel]; ok && cur == pos {
			delete(x.byChannel, oldChannel)
		}
	}
	if newChannel != "" {
		x.byChannel[newChannel] = pos
	}
}

// OnStatusChange maintains the open-by-user lists after a status flip.
func (x *Index) OnStatusChange(pos int, userID string, from, to domain.TicketStatus) {
	if from == to {
		return
	}
	if from == domain.TicketStatusOpen {
		x.removeOpen(userID, pos)
	}
	if to == domain.TicketStatusOpen {
		x.addOpen(userID, pos)
	}
}

// ByChannel returns the position of the ticket bound to channelID.
func (x *Index) ByChannel(channelID string) (int, bool) {
	pos, ok := x.byChannel[channelID]
	return pos, ok
}

// OpenByUser returns the positions of userID's open tickets in ascending order.
func (x *Index) OpenByUser(userID string) []int {
	return append([]int(nil), x.openByUser[userID]...)
}

// OpenCount returns how many open tickets userID has.
func (x *Index) OpenCount(userID string) int {
	return len(x.openByUser[userID])
}

// Equal reports whether two indexes hold identical mappings.
func (x *Index) Equal(other *Index) bool {
	if len(x.byChannel) != len(other.byChannel) || len(x.openByUser) != len(other.openByUser) {
		return false
	}
	for ch, pos := range x.byChannel {
		if p, ok := other.byChannel[ch]; !ok || p != pos {
			return false
		}
	}
	for user, positions := range x.openByUser {
		theirs, ok := other.openByUser[user]
		if !ok || len(theirs) != len(positions) {
			return false
		}
		for i := range positions {
			if positions[i] != theirs[i] {
				return false
			}
		}
	}
	return true
}

func (x *Index) addOpen(userID string, pos int) {
	list := x.openByUser[userID]
	i := sort.SearchInts(list, pos)
	if i < len(list) && list[i] == pos {
		return
	}
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = pos
	x.openByUser[userID] = list
}

func (x *Index) removeOpen(userID string, pos int) {
	list := x.openByUser[userID]
	i := sort.SearchInts(list, pos)
	if i >= len(list) || list[i] != pos {
		return
	}
	list = append(list[:i], list[i+1:]...)
	if len(list) == 0 {
		delete(x.openByUser, userID)
		return
	}
	x.openByUser[userID] = list
}
