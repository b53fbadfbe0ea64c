package tenant

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "provisio/pkg/domain-errors"
)

var validTenantID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Service orchestrates tenant lifecycle management.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateCommand carries admin input for a new tenant. SKUMap is accepted as
// free-form JSON and normalized rather than rejected.
type CreateCommand struct {
	ID            string
	Label         string
	ClientID      string
	ClientSecret  string
	DirectoryID   string
	DefaultDomain string
	SKUMap        json.RawMessage
}

// UpdateCommand carries a partial update; nil fields are left unchanged.
type UpdateCommand struct {
	Label         *string
	ClientID      *string
	ClientSecret  *string
	DirectoryID   *string
	DefaultDomain *string
	SKUMap        json.RawMessage
}

func (s *Service) Create(ctx context.Context, cmd *CreateCommand) (*Tenant, error) {
	id := strings.ToLower(strings.TrimSpace(cmd.ID))
	if id == "" {
		id = uuid.NewString()
	}
	if !validTenantID.MatchString(id) {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id must be lowercase alphanumeric with dashes")
	}
	if strings.TrimSpace(cmd.DirectoryID) == "" ||
		strings.TrimSpace(cmd.ClientID) == "" ||
		strings.TrimSpace(cmd.ClientSecret) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "directory credentials are required")
	}
	domain := strings.TrimSpace(strings.TrimPrefix(cmd.DefaultDomain, "@"))
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "default domain is required")
	}

	label := strings.TrimSpace(cmd.Label)
	if label == "" {
		label = id
	}

	t := &Tenant{
		ID:            id,
		Label:         label,
		ClientID:      strings.TrimSpace(cmd.ClientID),
		ClientSecret:  strings.TrimSpace(cmd.ClientSecret),
		DirectoryID:   strings.TrimSpace(cmd.DirectoryID),
		DefaultDomain: domain,
		SKUMap:        NormalizeSKUMap(cmd.SKUMap),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	if strings.TrimSpace(id) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	return s.store.List(ctx)
}

// Update applies a partial update to an existing tenant.
func (s *Service) Update(ctx context.Context, id string, cmd *UpdateCommand) (*Tenant, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Label != nil {
		t.Label = strings.TrimSpace(*cmd.Label)
	}
	if cmd.ClientID != nil {
		t.ClientID = strings.TrimSpace(*cmd.ClientID)
	}
	if cmd.ClientSecret != nil {
		t.ClientSecret = strings.TrimSpace(*cmd.ClientSecret)
	}
	if cmd.DirectoryID != nil {
		t.DirectoryID = strings.TrimSpace(*cmd.DirectoryID)
	}
	if cmd.DefaultDomain != nil {
		domain := strings.TrimSpace(strings.TrimPrefix(*cmd.DefaultDomain, "@"))
		if domain == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "default domain cannot be blank")
		}
		t.DefaultDomain = domain
	}
	if cmd.SKUMap != nil {
		t.SKUMap = NormalizeSKUMap(cmd.SKUMap)
	}
	if err := s.store.Put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a tenant. Invite codes scoped to it are left in place;
// redeeming them fails with a scope mismatch rather than an internal error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	return s.store.Delete(ctx, id)
}
