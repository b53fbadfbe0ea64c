// Package license derives remaining seat counts and expirations from
// directory SKU data.
package license

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"provisio/internal/directory"
	"provisio/internal/tenant"
)

// Usage is one SKU's seat accounting, tagged with its originating tenant.
type Usage struct {
	TenantID    string     `json:"tenantId"`
	TenantLabel string     `json:"tenantLabel"`
	SKUID       string     `json:"skuId"`
	PartNumber  string     `json:"skuPartNumber"`
	Name        string     `json:"name"`
	Total       int        `json:"total"`
	Used        int        `json:"used"`
	Remaining   int        `json:"remaining"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Lister is the directory read surface the accounting needs.
type Lister interface {
	ListLicenseSKUs(ctx context.Context, t *tenant.Tenant) ([]directory.SKU, error)
	ListSubscriptionExpirations(ctx context.Context, t *tenant.Tenant) ([]directory.Subscription, error)
}

// Summarize merges one tenant's SKU inventory with its subscription
// lifecycle records. Remaining is clamped at zero: a tenant can consume more
// seats than it prepaid, but the count never goes negative. The expiration is
// the earliest next-lifecycle date among matching subscription records.
func Summarize(t *tenant.Tenant, skus []directory.SKU, subs []directory.Subscription) []Usage {
	nameBySKU := make(map[string]string, len(t.SKUMap))
	for name, id := range t.SKUMap {
		nameBySKU[id] = name
	}

	earliest := make(map[string]*time.Time, len(subs))
	for _, sub := range subs {
		if sub.NextLifecycle == nil {
			continue
		}
		if cur, ok := earliest[sub.SKUID]; !ok || sub.NextLifecycle.Before(*cur) {
			ts := *sub.NextLifecycle
			earliest[sub.SKUID] = &ts
		}
	}

	out := make([]Usage, 0, len(skus))
	for _, sku := range skus {
		remaining := sku.Total - sku.Used
		if remaining < 0 {
			remaining = 0
		}
		name := nameBySKU[sku.ID]
		if name == "" {
			name = sku.PartNumber
		}
		out = append(out, Usage{
			TenantID:    t.ID,
			TenantLabel: t.Label,
			SKUID:       sku.ID,
			PartNumber:  sku.PartNumber,
			Name:        name,
			Total:       sku.Total,
			Used:        sku.Used,
			Remaining:   remaining,
			ExpiresAt:   earliest[sku.ID],
		})
	}
	sortUsages(out)
	return out
}

func sortUsages(usages []Usage) {
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Remaining != usages[j].Remaining {
			return usages[i].Remaining > usages[j].Remaining
		}
		return usages[i].Name < usages[j].Name
	})
}

// Service aggregates accounting across tenants.
type Service struct {
	dir    Lister
	logger *slog.Logger
}

func NewService(dir Lister, logger *slog.Logger) *Service {
	return &Service{dir: dir, logger: logger}
}

// Aggregate collects seat accounting for all tenants concurrently.
// Aggregation is best-effort: a failing tenant is logged and skipped so one
// bad credential does not blank the whole overview.
func (s *Service) Aggregate(ctx context.Context, tenants []*tenant.Tenant) ([]Usage, error) {
	var (
		mu  sync.Mutex
		all []Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tenants {
		g.Go(func() error {
			skus, err := s.dir.ListLicenseSKUs(gctx, t)
			if err != nil {
				s.logger.WarnContext(gctx, "skipping tenant in license aggregation",
					"error", err, "tenant_id", t.ID)
				return nil
			}
			subs, err := s.dir.ListSubscriptionExpirations(gctx, t)
			if err != nil {
				// Expirations are an enrichment; seat counts still matter.
				s.logger.WarnContext(gctx, "subscription expirations unavailable",
					"error", err, "tenant_id", t.ID)
				subs = nil
			}
			usages := Summarize(t, skus, subs)
			mu.Lock()
			all = append(all, usages...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortUsages(all)
	return all, nil
}
