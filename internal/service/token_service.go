// Package service exposes the token ledger to request handlers: it stamps
// every call with the clock, fans committed notifications out to the
// configured sinks and logs each mutation.
package service

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/logging"
	"github.com/rudolf-ledger/internal/metrics"
	"github.com/rudolf-ledger/internal/token"
	"github.com/rudolf-ledger/internal/types"
)

// EventDispatcher delivers committed notifications
type EventDispatcher interface {
	Dispatch(ctx context.Context, evs []events.Event) error
}

// ClaimableCache caches claimable quotes by version
type ClaimableCache interface {
	Get(ctx context.Context, v types.ClaimableVersion, now int64) (*uint256.Int, bool, error)
	Set(ctx context.Context, q *types.ClaimableQuote, now int64) error
}

// TokenService wraps the engine for context-aware callers
type TokenService struct {
	// mu orders mutations: sinks see the notifications of each call in
	// commit order.
	mu         sync.Mutex
	token      *token.Token
	clock      clockwork.Clock
	dispatcher EventDispatcher
	cache      ClaimableCache
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// Option configures a TokenService
type Option func(*TokenService)

// WithClock sets the time source
func WithClock(c clockwork.Clock) Option {
	return func(s *TokenService) { s.clock = c }
}

// WithDispatcher sets the notification dispatcher
func WithDispatcher(d EventDispatcher) Option {
	return func(s *TokenService) { s.dispatcher = d }
}

// WithClaimableCache sets the claimable cache
func WithClaimableCache(c ClaimableCache) Option {
	return func(s *TokenService) { s.cache = c }
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TokenService) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(s *TokenService) { s.logger = l }
}

// NewTokenService creates a new token service
func NewTokenService(tok *token.Token, opts ...Option) *TokenService {
	s := &TokenService{
		token:  tok,
		clock:  clockwork.NewRealClock(),
		logger: logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "token_service")
	return s
}

// Token returns the underlying engine
func (s *TokenService) Token() *token.Token {
	return s.token
}

// Now returns the unix time used for the next call
func (s *TokenService) Now() int64 {
	return s.clock.Now().Unix()
}

// Info returns the token summary
func (s *TokenService) Info(_ context.Context) types.TokenInfo {
	return types.TokenInfo{
		Name:        s.token.Name(),
		Symbol:      s.token.Symbol(),
		Decimals:    s.token.Decimals(),
		TotalSupply: s.token.TotalSupply().Dec(),
		Owner:       s.token.Owner().Hex(),
		Paused:      s.token.Paused(),
	}
}

// BalanceOf returns the current balance of account
func (s *TokenService) BalanceOf(_ context.Context, account common.Address) *uint256.Int {
	return s.token.BalanceOf(account)
}

// Allowance returns the allowance of spender over owner's funds
func (s *TokenService) Allowance(_ context.Context, owner, spender common.Address) *uint256.Int {
	return s.token.Allowance(owner, spender)
}

// BalanceOfAt returns the balance of account at snapshot id
func (s *TokenService) BalanceOfAt(_ context.Context, account common.Address, id uint64) (*uint256.Int, error) {
	return s.token.BalanceOfAt(account, id)
}

// TotalSupplyAt returns the total supply at snapshot id
func (s *TokenService) TotalSupplyAt(_ context.Context, id uint64) (*uint256.Int, error) {
	return s.token.TotalSupplyAt(id)
}

// Claimable returns the amount account could claim now. Results are
// served from the cache when one is configured.
func (s *TokenService) Claimable(ctx context.Context, account common.Address) (*uint256.Int, error) {
	now := s.Now()
	logger := s.logger.WithField("account", account.Hex())
	if s.cache != nil {
		amount, ok, err := s.cache.Get(ctx, s.token.ClaimVersion(account), now)
		if err != nil {
			logger.WithError(err).Warn("Claimable cache read failed")
		} else if ok {
			return amount, nil
		}
	}

	q, err := s.token.ClaimableQuote(account, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, q, now); err != nil {
			logger.WithError(err).Warn("Claimable cache write failed")
		}
	}
	return q.Amount, nil
}

// Vested returns the still-locked unlocks of account
func (s *TokenService) Vested(_ context.Context, account common.Address) []types.VestedAmount {
	return s.token.VestedSchedule(account, s.Now())
}

// Distributions returns the schedule summary
func (s *TokenService) Distributions(_ context.Context) types.DistributionInfo {
	return types.DistributionInfo{
		NextYear:           s.token.NextDistributionYear(),
		NextTime:           s.token.NextDistributionTime(),
		Count:              s.token.DistributionCount(),
		LastSnapshotID:     s.token.LastAirdropSnapshotID(),
		EmissionPerAirdrop: s.token.EmissionPerDistribution().Dec(),
	}
}

// Airdrops returns every recorded distribution
func (s *TokenService) Airdrops(_ context.Context) []types.AirdropInfo {
	recs := s.token.Airdrops()
	out := make([]types.AirdropInfo, len(recs))
	for i, r := range recs {
		out[i] = types.AirdropInfo{
			Year:        r.Year,
			SnapshotID:  r.SnapshotID,
			Time:        r.Time,
			TotalSupply: r.TotalSupply.Dec(),
			Amount:      r.Amount.Dec(),
		}
	}
	return out
}

// Transfer moves amount from caller to to
func (s *TokenService) Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "transfer", map[string]interface{}{
		"from":   caller.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	}, func(now int64) (*token.Receipt, error) {
		return s.token.Transfer(now, caller, to, amount)
	})
}

// Approve sets the allowance of spender over caller's funds
func (s *TokenService) Approve(ctx context.Context, caller, spender common.Address, amount *uint256.Int) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "approve", map[string]interface{}{
		"owner":   caller.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.Dec(),
	}, func(now int64) (*token.Receipt, error) {
		return s.token.Approve(now, caller, spender, amount)
	})
}

// TransferFrom moves amount from from to to on caller's allowance
func (s *TokenService) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "transfer_from", map[string]interface{}{
		"spender": caller.Hex(),
		"from":    from.Hex(),
		"to":      to.Hex(),
		"amount":  amount.Dec(),
	}, func(now int64) (*token.Receipt, error) {
		return s.token.TransferFrom(now, caller, from, to, amount)
	})
}

// Claim settles the caller's claimable airdrop amount
func (s *TokenService) Claim(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error) {
	var settled *uint256.Int
	info, err := s.mutate(ctx, "claim", map[string]interface{}{
		"account": caller.Hex(),
	}, func(now int64) (*token.Receipt, error) {
		r, err := s.token.Claim(now, caller)
		if err == nil {
			settled = r.Amount
		}
		return r, err
	})
	if err == nil && s.metrics != nil {
		s.metrics.ObserveClaim(settled.ToBig())
	}
	return info, err
}

// Pause blocks transfers and claims
func (s *TokenService) Pause(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "pause", map[string]interface{}{"caller": caller.Hex()}, func(now int64) (*token.Receipt, error) {
		return s.token.Pause(now, caller)
	})
}

// Unpause restores transfers and claims
func (s *TokenService) Unpause(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "unpause", map[string]interface{}{"caller": caller.Hex()}, func(now int64) (*token.Receipt, error) {
		return s.token.Unpause(now, caller)
	})
}

// TransferOwnership hands the owner role to newOwner
func (s *TokenService) TransferOwnership(ctx context.Context, caller, newOwner common.Address) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "transfer_ownership", map[string]interface{}{
		"caller":    caller.Hex(),
		"new_owner": newOwner.Hex(),
	}, func(now int64) (*token.Receipt, error) {
		return s.token.TransferOwnership(now, caller, newOwner)
	})
}

// RenounceOwnership leaves the token without owner
func (s *TokenService) RenounceOwnership(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error) {
	return s.mutate(ctx, "renounce_ownership", map[string]interface{}{"caller": caller.Hex()}, func(now int64) (*token.Receipt, error) {
		return s.token.RenounceOwnership(now, caller)
	})
}

// Publish dispatches a receipt produced outside the service, such as the
// genesis receipt of token.New.
func (s *TokenService) Publish(ctx context.Context, blockTime int64, r *token.Receipt) *types.ReceiptInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, _ := s.commit(ctx, "genesis", blockTime, r, nil, nil)
	return info
}

// mutate runs one engine call and dispatches its notifications before the
// next mutation may start.
func (s *TokenService) mutate(ctx context.Context, op string, fields map[string]interface{}, call func(now int64) (*token.Receipt, error)) (*types.ReceiptInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	r, err := call(now)
	return s.commit(ctx, op, now, r, err, fields)
}

// balanceChanging lists the operations that run distribution catch-up
var balanceChanging = map[string]bool{
	"transfer":      true,
	"transfer_from": true,
	"claim":         true,
}

// commit logs the outcome of an engine call and dispatches its
// notifications. Dispatch failures are logged only: the engine state is
// already committed.
func (s *TokenService) commit(ctx context.Context, op string, now int64, r *token.Receipt, err error, fields map[string]interface{}) (*types.ReceiptInfo, error) {
	logger := s.logger.WithField("operation", op).WithField("block_time", now)
	if fields != nil {
		logger = logger.WithFields(fields)
	}

	if err != nil {
		code := apperrors.CodeInternal
		if catErr := apperrors.Categorize(err); catErr != nil {
			code = catErr.Code
		}
		if s.metrics != nil {
			s.metrics.ObserveError(op, code)
		}
		logger.WithField("code", code).WithError(err).Warn("Token call rejected")
		return nil, err
	}

	if s.metrics != nil && balanceChanging[op] {
		s.metrics.ObserveCatchUp(r.Distributions)
	}
	if s.dispatcher != nil {
		// sink failures are already logged by the dispatcher
		_ = s.dispatcher.Dispatch(ctx, r.Events)
	}

	info := &types.ReceiptInfo{
		Events:        len(r.Events),
		Distributions: r.Distributions,
		BlockTime:     now,
	}
	if r.Amount != nil {
		info.Amount = r.Amount.Dec()
	}

	logger.WithFields(map[string]interface{}{
		"events":        info.Events,
		"distributions": info.Distributions,
	}).Info("Token call committed")
	return info, nil
}
