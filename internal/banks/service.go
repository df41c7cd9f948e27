package banks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redispkg "github.com/kasuwa-ng/marketplace-backend/pkg/redis"

	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
)

// gateway is the bank-directory slice of the payment provider.
type gateway interface {
	ListBanks(ctx context.Context, currency string) ([]paystack.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
}

// cache is the subset of the Redis client the read-through layer needs.
type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Service is a read-through cache over the gateway's bank directory. The
// directory changes rarely, so a cache miss is the only time withdrawals
// pay the gateway's latency.
type Service interface {
	List(ctx context.Context, currency string) ([]paystack.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
}

type service struct {
	gateway gateway
	cache   cache
	ttl     time.Duration
	logg    *logger.Logger
}

func NewService(gw gateway, c cache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if gw == nil {
		return nil, fmt.Errorf("banks: gateway is required")
	}
	if c == nil {
		return nil, fmt.Errorf("banks: cache is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{gateway: gw, cache: c, ttl: ttl, logg: logg}, nil
}

func (s *service) List(ctx context.Context, currency string) ([]paystack.Bank, error) {
	if currency == "" {
		currency = "NGN"
	}
	key := s.cache.CacheKey("banks", currency)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var banks []paystack.Bank
		if err := json.Unmarshal([]byte(raw), &banks); err == nil {
			return banks, nil
		}
		// A corrupt cache entry falls through to the gateway.
	} else if !redispkg.IsNil(err) && s.logg != nil {
		s.logg.Warn(ctx, "bank cache read failed")
	}

	banks, err := s.gateway.ListBanks(ctx, currency)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, banks)
	return banks, nil
}

func (s *service) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	if accountNumber == "" || bankCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code are required")
	}
	key := s.cache.CacheKey("account", bankCode, accountNumber)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var resolved paystack.ResolvedAccount
		if err := json.Unmarshal([]byte(raw), &resolved); err == nil {
			return &resolved, nil
		}
	} else if !redispkg.IsNil(err) && s.logg != nil {
		s.logg.Warn(ctx, "account cache read failed")
	}

	resolved, err := s.gateway.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, resolved)
	return resolved, nil
}

// store caches best-effort: a write failure never fails the lookup.
func (s *service) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "bank cache write failed")
	}
}
