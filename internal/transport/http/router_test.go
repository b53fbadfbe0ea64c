package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provisio/internal/admin"
	"provisio/internal/directory"
	"provisio/internal/guard"
	"provisio/internal/invite"
	"provisio/internal/license"
	"provisio/internal/provision"
	"provisio/internal/session"
	"provisio/internal/settings"
	"provisio/internal/tenant"
)

type fakeDirectory struct {
	accounts []directory.Account
}

func (f *fakeDirectory) CreateAccount(_ context.Context, t *tenant.Tenant, username, _ string) (string, error) {
	id := "acct-" + username
	f.accounts = append(f.accounts, directory.Account{
		ID:            id,
		DisplayName:   username,
		PrincipalName: t.Address(username),
		CreatedAt:     time.Now().UTC(),
	})
	return id, nil
}

func (f *fakeDirectory) AssignLicense(context.Context, *tenant.Tenant, string, string) error {
	return nil
}

func (f *fakeDirectory) ListAccounts(context.Context, *tenant.Tenant) ([]directory.Account, error) {
	return f.accounts, nil
}

func (f *fakeDirectory) DeleteAccount(context.Context, *tenant.Tenant, string, *guard.Guard) error {
	return nil
}

func (f *fakeDirectory) ResetPassword(context.Context, *tenant.Tenant, string, string, *guard.Guard) error {
	return nil
}

func (f *fakeDirectory) ListLicenseSKUs(context.Context, *tenant.Tenant) ([]directory.SKU, error) {
	return []directory.SKU{{ID: "sku-123", PartNumber: "ENTERPRISEPREMIUM", Total: 10, Used: 2}}, nil
}

func (f *fakeDirectory) ListSubscriptionExpirations(context.Context, *tenant.Tenant) ([]directory.Subscription, error) {
	return nil, nil
}

type passingVerifier struct{}

func (passingVerifier) Verify(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := &fakeDirectory{}

	tenants := tenant.NewService(tenant.NewInMemoryStore())
	settingsSvc := settings.NewService(settings.NewInMemoryStore(), settings.Settings{})
	invites := invite.NewService(invite.NewInMemoryStore())
	sessions := session.NewService(session.NewInMemoryStore(), "router-test-key", time.Hour)
	workflow := provision.NewService(tenants, settingsSvc, invites, passingVerifier{}, dir, logger)
	users := admin.NewUserDirectory(tenants, dir, logger)
	licenses := license.NewService(dir, logger)

	return NewRouter(Deps{
		Logger:    logger,
		Provision: provision.NewHandler(workflow, tenants, settingsSvc, logger),
		Session:   session.NewHandler(sessions, logger),
		Sessions:  sessions,
		Tenants:   tenant.NewHandler(tenants, logger),
		Invites:   invite.NewHandler(invites, logger),
		Admin:     admin.NewHandler(users, licenses, tenants, settingsSvc, logger),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminAPIRequiresSession(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/admin/api/tenants", "/admin/api/invites", "/admin/api/users", "/admin/api/licenses", "/admin/api/settings"} {
		rec := doJSON(t, router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestEndToEnd walks the whole surface: install, log in, create a tenant,
// mint an invite, register through the public endpoint, then inspect the
// admin views.
func TestEndToEnd(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/admin/setup", "", map[string]string{"password": "correct horse battery"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/admin/login", "", map[string]string{"password": "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	token := login.Token

	rec = doJSON(t, router, http.MethodPost, "/admin/api/tenants", token, map[string]any{
		"id":            "t1",
		"clientId":      "client",
		"clientSecret":  "secret",
		"directoryId":   "dir-1",
		"defaultDomain": "t1.example.com",
		"skuMap":        map[string]string{"E5": "sku-123"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret", "client secret must be redacted")

	// Require invites from here on.
	rec = doJSON(t, router, http.MethodPost, "/admin/api/settings", token, map[string]any{"requireInvite": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/admin/api/invites", token, map[string]any{
		"charClasses":   []string{"lower", "digit"},
		"length":        8,
		"quantity":      1,
		"perCodeLimit":  1,
		"allowedScopes": []map[string]string{{"tenantId": "t1", "skuName": "E5"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var minted []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &minted))
	require.Len(t, minted, 1)

	rec = doJSON(t, router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "t1")
	assert.Contains(t, rec.Body.String(), "E5")

	register := map[string]string{
		"tenantId": "t1",
		"username": "alice42",
		"password": "Tr0ub4dor&3",
		"sku":      "E5",
	}
	rec = doJSON(t, router, http.MethodPost, "/", "", register)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invite required but missing")

	register["inviteCode"] = minted[0].Code
	rec = doJSON(t, router, http.MethodPost, "/", "", register)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice42@t1.example.com")

	rec = doJSON(t, router, http.MethodGet, "/admin/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice42@t1.example.com")

	rec = doJSON(t, router, http.MethodGet, "/admin/api/licenses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ENTERPRISEPREMIUM")

	// Logout revokes the token for the gated API.
	rec = doJSON(t, router, http.MethodPost, "/admin/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/admin/api/tenants", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
