package dispatcher

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// GuildLimiter paces outbound actions per guild.
type GuildLimiter struct {
	limiters *xsync.MapOf[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func NewGuildLimiter(perSecond float64, burst int) *GuildLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &GuildLimiter{
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
		limit:    limit,
		burst:    burst,
	}
}

func (gl *GuildLimiter) Wait(ctx context.Context, guildID string) error {
	l, _ := gl.limiters.LoadOrCompute(guildID, func() *rate.Limiter {
		return rate.NewLimiter(gl.limit, gl.burst)
	})
	return l.Wait(ctx)
}
