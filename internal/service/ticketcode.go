package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// TicketCodeGenerator allocates human-readable codes of the form
// SR-YYYYMMDD-NNNN. A Redis daily sequence keeps codes dense and
// collision-free; without Redis it falls back to a random 4-digit
// suffix, relying on the unique constraint to reject the rare clash.
type TicketCodeGenerator struct {
	client *redis.Client
}

// NewTicketCodeGenerator creates a generator. client may be nil.
func NewTicketCodeGenerator(client *redis.Client) *TicketCodeGenerator {
	return &TicketCodeGenerator{client: client}
}

// Next returns the next ticket code for the given day.
func (g *TicketCodeGenerator) Next(ctx context.Context, now time.Time) string {
	datePart := now.Format("20060102")
	if g.client != nil {
		key := "servicedesk:ticket_seq:" + datePart
		seq, err := g.client.Incr(ctx, key).Result()
		if err == nil {
			g.client.Expire(ctx, key, 48*time.Hour)
			return fmt.Sprintf("SR-%s-%04d", datePart, seq%10000)
		}
	}
	return fmt.Sprintf("SR-%s-%04d", datePart, 1000+rand.Intn(9000))
}
