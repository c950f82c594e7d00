package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/store"
)

const (
	// DefaultTimeout bounds a decision before the fallback is served
	DefaultTimeout = 2 * time.Second

	fallbackTTL     = 30 * time.Minute
	fallbackCleanup = 10 * time.Minute
)

// Extractor builds the product seen on a page.
type Extractor interface {
	Extract(marketplace, productID string, observed domain.Product) (domain.Product, error)
}

// Request identifies the page asking for a decision.
type Request struct {
	Marketplace string         `json:"marketplace"`
	ProductID   string         `json:"productId"`
	TabID       string         `json:"tabId"`
	Observed    domain.Product `json:"observed"`
}

type Service struct {
	entities  *store.Entities
	extractor Extractor
	logger    logger.Logger
	timeout   time.Duration
	now       func() time.Time

	// last decision per (tab, product), served when a fresh one is late
	last *cache.Cache
}

func NewService(entities *store.Entities, extractor Extractor, log logger.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		entities:  entities,
		extractor: extractor,
		logger:    log,
		timeout:   timeout,
		now:       time.Now,
		last:      cache.New(fallbackTTL, fallbackCleanup),
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Decide evaluates the page described by req from a fresh snapshot.
//
// Only extraction errors are returned. A store that fails or does not
// answer within the timeout yields the previous decision for the same tab
// and product, or hidden, marked Stale.
func (s *Service) Decide(ctx context.Context, req Request) (Decision, error) {
	product, err := s.extractor.Extract(req.Marketplace, req.ProductID, req.Observed)
	if err != nil {
		return Decision{}, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		decision Decision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		d, err := s.evaluate(ctx, req.TabID, product)
		done <- result{d, err}
	}()

	log := s.logger.With(logger.ProductKey(product.Key), logger.TabID(req.TabID))

	select {
	case res := <-done:
		if res.err != nil {
			log.Warn("decision store read failed, serving fallback", logger.Error(res.err))
			return s.fallback(req.TabID, product, "store"), nil
		}
		metrics.DecisionLatency.Observe(time.Since(start).Seconds())
		metrics.Decisions.WithLabelValues(string(res.decision.View)).Inc()
		s.last.Set(cacheKey(req.TabID, product.Key), res.decision, cache.DefaultExpiration)
		log.Debug("decision",
			logger.String("view", string(res.decision.View)),
			logger.String("reason", res.decision.Reason))
		return res.decision, nil

	case <-ctx.Done():
		log.Warn("decision timed out, serving fallback",
			logger.Duration("timeout", s.timeout),
			logger.Error(ctx.Err()))
		return s.fallback(req.TabID, product, "timeout"), nil
	}
}

func (s *Service) evaluate(ctx context.Context, tabID string, product domain.Product) (Decision, error) {
	snap, err := s.entities.Snapshot(ctx, tabID)
	if err != nil {
		return Decision{}, fmt.Errorf("read snapshot: %w", err)
	}

	d := Evaluate(snap, product, s.now())

	// intents are best effort: a failure only delays the cleanup
	if d.ClearSnooze {
		if err := s.entities.ClearSnooze(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("failed to clear expired snooze", logger.Error(err))
		}
	}
	if d.ConsumeSession {
		if err := s.entities.ClearTabSession(ctx, tabID); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("failed to clear tab session marker",
				logger.TabID(tabID),
				logger.Error(err))
		}
	}
	return d, nil
}

func (s *Service) fallback(tabID string, product domain.Product, reason string) Decision {
	metrics.DecisionFallbacks.WithLabelValues(reason).Inc()

	if cached, ok := s.last.Get(cacheKey(tabID, product.Key)); ok {
		d := cached.(Decision)
		d.Stale = true
		return d
	}
	return Decision{
		View:    ViewHidden,
		Reason:  ReasonFallback,
		Product: &product,
		Stale:   true,
	}
}

func cacheKey(tabID, productKey string) string {
	return tabID + "|" + productKey
}
