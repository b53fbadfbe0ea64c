// Package admin implements the session-gated management surface: cross-tenant
// user listing, user mutations, license overview, and settings editing.
package admin

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"provisio/internal/directory"
	"provisio/internal/guard"
	"provisio/internal/settings"
	"provisio/internal/tenant"
)

// DirectoryAdmin is the slice of the directory client the admin surface needs.
type DirectoryAdmin interface {
	ListAccounts(ctx context.Context, t *tenant.Tenant) ([]directory.Account, error)
	DeleteAccount(ctx context.Context, t *tenant.Tenant, accountID string, g *guard.Guard) error
	ResetPassword(ctx context.Context, t *tenant.Tenant, accountID, newPassword string, g *guard.Guard) error
}

// UserRow is one directory account tagged with its tenant and resolved
// license names.
type UserRow struct {
	TenantID      string    `json:"tenantId"`
	TenantLabel   string    `json:"tenantLabel"`
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	PrincipalName string    `json:"userPrincipalName"`
	CreatedAt     time.Time `json:"createdDateTime"`
	Licenses      []string  `json:"licenses"`
}

// UserDirectory aggregates accounts across all tenants.
type UserDirectory struct {
	tenants *tenant.Service
	dir     DirectoryAdmin
	logger  *slog.Logger
}

func NewUserDirectory(tenants *tenant.Service, dir DirectoryAdmin, logger *slog.Logger) *UserDirectory {
	return &UserDirectory{tenants: tenants, dir: dir, logger: logger}
}

// List fetches every tenant's accounts concurrently. Aggregation is
// best-effort: a tenant whose listing fails is logged and skipped. Hidden
// accounts from the settings snapshot never appear in the result.
func (u *UserDirectory) List(ctx context.Context, snap *settings.Settings) ([]UserRow, error) {
	tenants, err := u.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	hidden := make(map[string]bool, len(snap.HiddenUsers))
	for _, addr := range snap.HiddenUsers {
		hidden[strings.ToLower(addr)] = true
	}

	var (
		mu   sync.Mutex
		rows []UserRow
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tenants {
		g.Go(func() error {
			accounts, err := u.dir.ListAccounts(gctx, t)
			if err != nil {
				u.logger.WarnContext(gctx, "skipping tenant in user listing",
					"error", err, "tenant_id", t.ID)
				return nil
			}

			nameBySKU := make(map[string]string, len(t.SKUMap))
			for name, id := range t.SKUMap {
				nameBySKU[id] = name
			}

			batch := make([]UserRow, 0, len(accounts))
			for _, a := range accounts {
				if hidden[strings.ToLower(a.PrincipalName)] {
					continue
				}
				licenses := make([]string, 0, len(a.AssignedSKUIDs))
				for _, skuID := range a.AssignedSKUIDs {
					if name, ok := nameBySKU[skuID]; ok {
						licenses = append(licenses, name)
					} else {
						licenses = append(licenses, skuID)
					}
				}
				batch = append(batch, UserRow{
					TenantID:      t.ID,
					TenantLabel:   t.Label,
					ID:            a.ID,
					DisplayName:   a.DisplayName,
					PrincipalName: a.PrincipalName,
					CreatedAt:     a.CreatedAt,
					Licenses:      licenses,
				})
			}
			mu.Lock()
			rows = append(rows, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].PrincipalName < rows[j].PrincipalName
	})
	return rows, nil
}

// Delete removes one account after the protection guard from the current
// settings snapshot clears it.
func (u *UserDirectory) Delete(ctx context.Context, snap *settings.Settings, tenantID, accountID string) error {
	t, err := u.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	return u.dir.DeleteAccount(ctx, t, accountID, snap.Guard())
}

// ResetPassword sets a new password on one account, guard permitting.
func (u *UserDirectory) ResetPassword(ctx context.Context, snap *settings.Settings, tenantID, accountID, password string) error {
	t, err := u.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	return u.dir.ResetPassword(ctx, t, accountID, password, snap.Guard())
}
