// Package provision orchestrates self-service registration end to end:
// validation, invite redemption, captcha, protection check, account creation,
// and license assignment.
package provision

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"provisio/internal/captcha"
	"provisio/internal/invite"
	"provisio/internal/settings"
	"provisio/internal/tenant"
	dErrors "provisio/pkg/domain-errors"
)

var registrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "provisio_registrations_total",
	Help: "Registration attempts by outcome",
}, []string{"outcome"})

// Directory is the slice of the directory client the workflow needs.
type Directory interface {
	CreateAccount(ctx context.Context, t *tenant.Tenant, username, password string) (string, error)
	AssignLicense(ctx context.Context, t *tenant.Tenant, accountID, skuID string) error
}

// Redeemer consumes one invite use for a (tenant, SKU) scope.
type Redeemer interface {
	Redeem(ctx context.Context, code, tenantID, skuName string) (*invite.Invite, error)
}

// Request is one in-flight registration attempt. It is never persisted.
type Request struct {
	TenantID     string
	Username     string
	Password     string
	SKUName      string
	InviteCode   string
	CaptchaToken string
	RemoteIP     string
}

// Result is the terminal outcome of a successful or partially successful
// attempt. Partial means the account exists but licensing failed; the address
// and the license error are both reported so an operator can remediate.
type Result struct {
	AccountID    string
	Address      string
	Partial      bool
	LicenseError string
}

// Service drives the registration workflow.
type Service struct {
	tenants   *tenant.Service
	settings  *settings.Service
	invites   Redeemer
	captcha   captcha.Verifier
	directory Directory
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(
	tenants *tenant.Service,
	settingsSvc *settings.Service,
	invites Redeemer,
	verifier captcha.Verifier,
	dir Directory,
	logger *slog.Logger,
) *Service {
	return &Service{
		tenants:   tenants,
		settings:  settingsSvc,
		invites:   invites,
		captcha:   verifier,
		directory: dir,
		logger:    logger,
		tracer:    otel.Tracer("provisio/provision"),
	}
}

// Provision runs one registration attempt to a terminal outcome. Validation
// and protection failures happen before any side effect; once the account is
// created there is no rollback, so a license-assignment failure surfaces as a
// partial result rather than an error.
func (s *Service) Provision(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "provision.Register",
		trace.WithAttributes(attribute.String("tenant.id", req.TenantID)))
	defer span.End()

	res, err := s.run(ctx, req)
	switch {
	case err != nil:
		span.RecordError(err)
		registrations.WithLabelValues(failureOutcome(err)).Inc()
	case res.Partial:
		registrations.WithLabelValues("partial").Inc()
	default:
		registrations.WithLabelValues("ok").Inc()
	}
	return res, err
}

func (s *Service) run(ctx context.Context, req *Request) (*Result, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// Validating
	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password, req.Username); err != nil {
		return nil, err
	}
	t, err := s.tenants.Get(ctx, req.TenantID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown tenant")
		}
		return nil, err
	}
	skuID, ok := t.LookupSKU(req.SKUName)
	if !ok {
		return nil, dErrors.New(dErrors.CodeConfig, "license not offered by this tenant")
	}

	// InviteCheck
	if snap.RequireInvite {
		if req.InviteCode == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "an invite code is required")
		}
		if _, err := s.invites.Redeem(ctx, req.InviteCode, t.ID, req.SKUName); err != nil {
			return nil, err
		}
	}

	// CaptchaCheck
	if snap.CaptchaEnabled() {
		passed, err := s.captcha.Verify(ctx, snap.CaptchaSecret, req.CaptchaToken, req.RemoteIP)
		if err != nil {
			return nil, err
		}
		if !passed {
			return nil, dErrors.New(dErrors.CodeValidation, "captcha verification failed")
		}
	}

	// ProtectionCheck
	address := t.Address(req.Username)
	if snap.Guard().IsProtected(address) {
		return nil, dErrors.New(dErrors.CodeForbidden, "this name is reserved")
	}

	// Creating
	accountID, err := s.directory.CreateAccount(ctx, t, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account created",
		"tenant_id", t.ID, "address", address, "account_id", accountID)

	// AssigningLicense
	if err := s.directory.AssignLicense(ctx, t, accountID, skuID); err != nil {
		// The account exists and stays; the operator reassigns the license
		// by hand. Nothing is deleted or retried here.
		s.logger.ErrorContext(ctx, "license assignment failed after account creation",
			"error", err, "tenant_id", t.ID, "address", address, "account_id", accountID)
		return &Result{
			AccountID:    accountID,
			Address:      address,
			Partial:      true,
			LicenseError: err.Error(),
		}, nil
	}

	return &Result{AccountID: accountID, Address: address}, nil
}

func failureOutcome(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return "validation"
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return "forbidden"
	case dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeExhausted),
		dErrors.HasCode(err, dErrors.CodeScopeMismatch):
		return "invite_rejected"
	case dErrors.HasCode(err, dErrors.CodeExternal):
		return "external"
	default:
		return "error"
	}
}
