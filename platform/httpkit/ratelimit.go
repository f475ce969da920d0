package httpkit

import (
	"fmt"
	"net/http"

	"tanktally_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "tanktally:ratelimit"

// NewAPIRateLimiter returns a per-IP fixed-window limiter for a rate such as
// "300-M". Counters live in Redis when rdb is set so that every replica shares
// them, otherwise in process memory.
func NewAPIRateLimiter(formatted string, rdb *redis.Client, log *logger.Logger) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}

	var store limiter.Store
	if rdb != nil {
		store, err = redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix:   rateLimitPrefix,
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	return ginmiddleware.NewMiddleware(
		limiter.New(store, rate),
		ginmiddleware.WithLimitReachedHandler(func(c *gin.Context) {
			log.RateLimitExceeded(c.ClientIP(), c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
		}),
		ginmiddleware.WithErrorHandler(func(c *gin.Context, err error) {
			// Store failures let the request through.
			log.Warn("rate limit store failed", "error", err)
			c.Next()
		}),
	), nil
}
