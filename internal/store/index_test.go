package store

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestIndexIncrementalMatchesRebuild(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var tickets []domain.Ticket
	idx := NewIndex()

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(tickets) == 0:
			tk := domain.Ticket{
				ID:     len(tickets) + 1,
				UserID: "u" + strconv.Itoa(rng.Intn(4)),
				Status: domain.TicketStatusOpen,
			}
			tickets = append(tickets, tk)
			idx.OnAppended(len(tickets)-1, &tickets[len(tickets)-1])
		case op == 1:
			pos := rng.Intn(len(tickets))
			old := tickets[pos].Channel()
			ch := "c" + strconv.Itoa(tickets[pos].ID)
			tickets[pos].ChannelID = strPtr(ch)
			idx.OnChannelAssigned(pos, old, ch)
		default:
			pos := rng.Intn(len(tickets))
			from := tickets[pos].Status
			to := domain.TicketStatusClosed
			if from == domain.TicketStatusClosed {
				to = domain.TicketStatusOpen
			}
			tickets[pos].Status = to
			idx.OnStatusChange(pos, tickets[pos].UserID, from, to)
		}
		require.True(t, idx.Equal(BuildIndex(tickets)), "diverged at step %d", step)
	}
}

func TestIndexOpenByUserIsSortedCopy(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: 1, UserID: "u", Status: domain.TicketStatusOpen},
		{ID: 2, UserID: "v", Status: domain.TicketStatusOpen},
		{ID: 3, UserID: "u", Status: domain.TicketStatusClosed},
		{ID: 4, UserID: "u", Status: domain.TicketStatusOpen},
	}
	idx := BuildIndex(tickets)

	got := idx.OpenByUser("u")
	assert.Equal(t, []int{0, 3}, got)
	got[0] = 99
	assert.Equal(t, []int{0, 3}, idx.OpenByUser("u"))
	assert.Equal(t, 0, idx.OpenCount("nobody"))
}
