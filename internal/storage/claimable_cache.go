package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/types"
)

const claimableKeyPrefix = "rudolf:claimable:"

// ClaimableCache caches claimable quotes. Keys carry the quote version, so
// a quote computed before a claim or a distribution is never served after
// it. Entries expire at the account's next unlock or after ttl, whichever
// comes first.
type ClaimableCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewClaimableCache creates a claimable cache
func NewClaimableCache(redis *RedisCache, ttl time.Duration) *ClaimableCache {
	return &ClaimableCache{redis: redis, ttl: ttl}
}

func accountPrefix(account common.Address) string {
	return claimableKeyPrefix + strings.ToLower(account.Hex()) + ":"
}

// Key returns the cache key of a version
func (c *ClaimableCache) Key(v types.ClaimableVersion) string {
	return fmt.Sprintf("%s%d:%d", accountPrefix(v.Account), v.Distributions, v.Claims)
}

// Get returns the cached amount of version v, ok=false on a miss or when
// the cached quote no longer holds at now.
func (c *ClaimableCache) Get(ctx context.Context, v types.ClaimableVersion, now int64) (*uint256.Int, bool, error) {
	raw, err := c.redis.Get(ctx, c.Key(v))
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewCacheError("read claimable", err)
	}
	q, ok := decodeQuote(raw)
	// a corrupt entry is a miss
	if !ok || q.Expired(now) {
		return nil, false, nil
	}
	return q.Amount, true, nil
}

// Set stores q, computed at now
func (c *ClaimableCache) Set(ctx context.Context, q *types.ClaimableQuote, now int64) error {
	ttl := c.ttl
	if q.ValidUntil != 0 {
		left := time.Duration(q.ValidUntil-now) * time.Second
		if left <= 0 {
			return nil
		}
		if left < ttl {
			ttl = left
		}
	}
	raw := q.Amount.Dec() + ":" + strconv.FormatInt(q.ValidUntil, 10)
	return c.redis.Set(ctx, c.Key(q.ClaimableVersion), raw, ttl)
}

func decodeQuote(raw string) (types.ClaimableQuote, bool) {
	amount, until, found := strings.Cut(raw, ":")
	if !found {
		return types.ClaimableQuote{}, false
	}
	a, err := types.ParseAmount(amount)
	if err != nil {
		return types.ClaimableQuote{}, false
	}
	u, err := strconv.ParseInt(until, 10, 64)
	if err != nil {
		return types.ClaimableQuote{}, false
	}
	return types.ClaimableQuote{Amount: a, ValidUntil: u}, true
}

// Invalidate drops every entry of accounts
func (c *ClaimableCache) Invalidate(ctx context.Context, accounts ...common.Address) error {
	var err error
	for _, a := range accounts {
		if _, delErr := c.redis.DelPattern(ctx, accountPrefix(a)+"*"); delErr != nil {
			err = multierr.Append(err, delErr)
		}
	}
	return err
}

// InvalidateAll drops every entry
func (c *ClaimableCache) InvalidateAll(ctx context.Context) error {
	_, err := c.redis.DelPattern(ctx, claimableKeyPrefix+"*")
	return err
}

// Name implements events.Sink
func (c *ClaimableCache) Name() string { return "claimable_cache" }

// Handle implements events.Sink. Superseded entries are unreachable
// already; this only frees them early. A distribution supersedes every
// entry, a claim those of the claimant. Plain transfers never change a
// claimable amount since entitlements read snapshotted balances.
func (c *ClaimableCache) Handle(ctx context.Context, evs []events.Event) error {
	var claimants []common.Address
	for _, e := range evs {
		switch e.Kind {
		case types.EventXmasAirdrop:
			return c.InvalidateAll(ctx)
		case types.EventTransfer:
			if e.From != nil && *e.From == (common.Address{}) && e.To != nil {
				claimants = append(claimants, *e.To)
			}
		}
	}
	return c.Invalidate(ctx, claimants...)
}
