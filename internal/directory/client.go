// Package directory wraps the external identity-and-license service,
// isolating its OAuth and REST shape from the rest of the system.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"provisio/internal/guard"
	"provisio/internal/tenant"
	dErrors "provisio/pkg/domain-errors"
)

var directoryCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "provisio_directory_errors_total",
	Help: "Directory REST call failures by operation",
}, []string{"op"})

// Config points the client at a directory deployment.
type Config struct {
	// BaseURL is the REST root, e.g. https://graph.microsoft.com/v1.0.
	BaseURL string
	// LoginURL is the OAuth authority root; the token endpoint is
	// <LoginURL>/<directoryID>/oauth2/v2.0/token.
	LoginURL string
	Scope    string
	// UsageLocation is stamped onto created accounts (license requirement).
	UsageLocation string
}

// Client translates domain intents into directory REST calls. Operations do
// not retry; any failure surfaces immediately to the invoking workflow.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.LoginURL = strings.TrimSuffix(cfg.LoginURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		tracer:     otel.Tracer("provisio/directory"),
	}
}

// AccessToken performs a client-credentials exchange for the tenant. Tokens
// are not cached: every operation re-authenticates, so a revoked credential
// is detected on the very next call instead of being masked by a stale cache.
func (c *Client) AccessToken(ctx context.Context, t *tenant.Tenant) (string, error) {
	cc := &clientcredentials.Config{
		ClientID:     t.ClientID,
		ClientSecret: t.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.cfg.LoginURL, t.DirectoryID),
		Scopes:       []string{c.cfg.Scope},
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternal, "directory authentication failed")
	}
	return tok.AccessToken, nil
}

// upstreamError carries a raw directory failure before classification.
type upstreamError struct {
	Status  int
	Message string
}

func (e *upstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("directory call failed with status %d", e.Status)
}

// do issues one authenticated call. A non-2xx response is returned as
// *upstreamError so callers can classify or pass the message through.
func (c *Client) do(ctx context.Context, t *tenant.Tenant, method, url string, body, out any, headers map[string]string) error {
	token, err := c.AccessToken(ctx, t)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode directory request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build directory request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "directory unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &upstreamError{Status: resp.StatusCode, Message: apiErr.Error.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeExternal, "malformed directory response")
		}
	}
	return nil
}

// external converts an unclassified call failure into a domain error.
func external(op string, err error) error {
	directoryCallErrors.WithLabelValues(op).Inc()
	var up *upstreamError
	if ok := asUpstream(err, &up); ok {
		return dErrors.New(dErrors.CodeExternal, up.Error())
	}
	return err
}

func asUpstream(err error, target **upstreamError) bool {
	u, ok := err.(*upstreamError)
	if ok {
		*target = u
	}
	return ok
}

func (c *Client) span(ctx context.Context, op string, t *tenant.Tenant) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "directory."+op,
		trace.WithAttributes(attribute.String("tenant.id", t.ID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateAccount creates a directory user and returns its unique id.
// Failures are classified from known upstream error phrases; anything
// unrecognized passes the upstream message through.
func (c *Client) CreateAccount(ctx context.Context, t *tenant.Tenant, username, password string) (id string, err error) {
	ctx, span := c.span(ctx, "CreateAccount", t)
	defer func() { endSpan(span, err) }()

	payload := createUserPayload{
		AccountEnabled:    true,
		DisplayName:       username,
		MailNickname:      username,
		UserPrincipalName: t.Address(username),
		PasswordProfile:   passwordProfile{Password: password},
		UsageLocation:     c.cfg.UsageLocation,
	}

	var created userResource
	if err := c.do(ctx, t, http.MethodPost, c.cfg.BaseURL+"/users", payload, &created, nil); err != nil {
		var up *upstreamError
		if asUpstream(err, &up) {
			directoryCallErrors.WithLabelValues("CreateAccount").Inc()
			return "", classifyCreateFailure(up.Message)
		}
		return "", err
	}
	return created.ID, nil
}

// AssignLicense assigns a SKU to an account. It succeeds or fails
// independently of account creation.
func (c *Client) AssignLicense(ctx context.Context, t *tenant.Tenant, accountID, skuID string) (err error) {
	ctx, span := c.span(ctx, "AssignLicense", t)
	defer func() { endSpan(span, err) }()

	payload := assignLicensePayload{
		AddLicenses:    []licenseAssignment{{DisabledPlans: []string{}, SKUID: skuID}},
		RemoveLicenses: []string{},
	}
	url := fmt.Sprintf("%s/users/%s/assignLicense", c.cfg.BaseURL, accountID)
	if err := c.do(ctx, t, http.MethodPost, url, payload, nil, nil); err != nil {
		return external("AssignLicense", err)
	}
	return nil
}

// guardAccount re-fetches the account's principal name and runs it through
// the protection guard. Fails closed: if the verification fetch itself fails
// the mutation is forbidden rather than allowed through.
func (c *Client) guardAccount(ctx context.Context, t *tenant.Tenant, accountID string, g *guard.Guard) error {
	var u userResource
	url := fmt.Sprintf("%s/users/%s?$select=userPrincipalName", c.cfg.BaseURL, accountID)
	if err := c.do(ctx, t, http.MethodGet, url, nil, &u, nil); err != nil {
		c.logger.WarnContext(ctx, "protection check fetch failed, refusing mutation",
			"error", err, "tenant_id", t.ID, "account_id", accountID)
		return dErrors.New(dErrors.CodeForbidden, "unable to verify account protection")
	}
	if g.IsProtected(u.UserPrincipalName) {
		return dErrors.New(dErrors.CodeForbidden, "account is protected")
	}
	return nil
}

// DeleteAccount removes an account after the protection check passes.
func (c *Client) DeleteAccount(ctx context.Context, t *tenant.Tenant, accountID string, g *guard.Guard) (err error) {
	ctx, span := c.span(ctx, "DeleteAccount", t)
	defer func() { endSpan(span, err) }()

	if err := c.guardAccount(ctx, t, accountID, g); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, accountID)
	if err := c.do(ctx, t, http.MethodDelete, url, nil, nil, nil); err != nil {
		return external("DeleteAccount", err)
	}
	return nil
}

// ResetPassword patches an account's password after the protection check passes.
func (c *Client) ResetPassword(ctx context.Context, t *tenant.Tenant, accountID, newPassword string, g *guard.Guard) (err error) {
	ctx, span := c.span(ctx, "ResetPassword", t)
	defer func() { endSpan(span, err) }()

	if err := c.guardAccount(ctx, t, accountID, g); err != nil {
		return err
	}
	payload := patchPasswordPayload{
		PasswordProfile: passwordProfile{Password: newPassword},
	}
	url := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, accountID)
	if err := c.do(ctx, t, http.MethodPatch, url, payload, nil, nil); err != nil {
		return external("ResetPassword", err)
	}
	return nil
}

// ListAccounts returns all directory users, following pagination.
func (c *Client) ListAccounts(ctx context.Context, t *tenant.Tenant) (out []Account, err error) {
	ctx, span := c.span(ctx, "ListAccounts", t)
	defer func() { endSpan(span, err) }()

	url := c.cfg.BaseURL + "/users?$select=id,displayName,userPrincipalName,createdDateTime,assignedLicenses&$top=100&$orderby=createdDateTime%20desc&$count=true"
	headers := map[string]string{"ConsistencyLevel": "eventual"}

	for url != "" {
		var page userPage
		if err := c.do(ctx, t, http.MethodGet, url, nil, &page, headers); err != nil {
			return nil, external("ListAccounts", err)
		}
		for _, u := range page.Value {
			skuIDs := make([]string, 0, len(u.AssignedLicenses))
			for _, l := range u.AssignedLicenses {
				skuIDs = append(skuIDs, l.SKUID)
			}
			out = append(out, Account{
				ID:             u.ID,
				DisplayName:    u.DisplayName,
				PrincipalName:  u.UserPrincipalName,
				CreatedAt:      u.CreatedDateTime,
				AssignedSKUIDs: skuIDs,
			})
		}
		url = page.NextLink
	}
	return out, nil
}

// ListLicenseSKUs returns the tenant's subscribed SKUs with seat counts.
func (c *Client) ListLicenseSKUs(ctx context.Context, t *tenant.Tenant) (out []SKU, err error) {
	ctx, span := c.span(ctx, "ListLicenseSKUs", t)
	defer func() { endSpan(span, err) }()

	var envelope listEnvelope[subscribedSKUResource]
	if err := c.do(ctx, t, http.MethodGet, c.cfg.BaseURL+"/subscribedSkus", nil, &envelope, nil); err != nil {
		return nil, external("ListLicenseSKUs", err)
	}
	for _, s := range envelope.Value {
		out = append(out, SKU{
			ID:         s.SKUID,
			PartNumber: s.SKUPartNumber,
			Total:      s.PrepaidUnits.Enabled,
			Used:       s.ConsumedUnits,
		})
	}
	return out, nil
}

// ListSubscriptionExpirations returns subscription lifecycle records.
func (c *Client) ListSubscriptionExpirations(ctx context.Context, t *tenant.Tenant) (out []Subscription, err error) {
	ctx, span := c.span(ctx, "ListSubscriptionExpirations", t)
	defer func() { endSpan(span, err) }()

	var envelope listEnvelope[subscriptionResource]
	if err := c.do(ctx, t, http.MethodGet, c.cfg.BaseURL+"/directory/subscriptions", nil, &envelope, nil); err != nil {
		return nil, external("ListSubscriptionExpirations", err)
	}
	for _, s := range envelope.Value {
		out = append(out, Subscription{SKUID: s.SKUID, NextLifecycle: s.NextLifecycleDateTime})
	}
	return out, nil
}
