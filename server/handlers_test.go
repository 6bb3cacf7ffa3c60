package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/authcore-io/authcore/auth"
	sessionfakes "github.com/authcore-io/authcore/auth/sessions/repofakes"
	"github.com/authcore-io/authcore/internal/config"
	"github.com/authcore-io/authcore/mfa"
	"github.com/authcore-io/authcore/ratelimit"
	"github.com/authcore-io/authcore/risk"
	profilefake "github.com/authcore-io/authcore/risk/profile/repofake"
	"github.com/authcore-io/authcore/server"
	"github.com/authcore-io/authcore/token"
	tokenfake "github.com/authcore-io/authcore/token/repofake"
	"github.com/authcore-io/authcore/users"
	userfake "github.com/authcore-io/authcore/users/repofake"
)

type benignResolver struct{}

func (benignResolver) Resolve(_ context.Context, _ string) (*risk.GeoInfo, error) {
	return &risk.GeoInfo{Location: risk.Location{Country: "GB", Region: "England", City: "London"}}, nil
}

func setupServer(t *testing.T) *server.Server {
	t.Helper()

	now := time.Now
	userRepo := userfake.NewFakeUserRepo()
	profileRepo := profilefake.NewFakeProfileRepo()
	sessionRepo := sessionfakes.NewFakeSessionRepo()

	policy := risk.DefaultPolicy()
	engine := risk.NewEngine(policy,
		[]risk.Analyzer{risk.NewGeoAnalyzer(benignResolver{}, policy), risk.NewDeviceAnalyzer(policy)},
		risk.NewMemoryCache(), profileRepo)

	keyPair, err := token.GenerateHMACKeyPair("key-1", now())
	require.NoError(t, err)
	ring, err := token.NewKeyRing(keyPair, 7*24*time.Hour)
	require.NoError(t, err)
	tokens, err := token.New(token.NewHMACSigner(ring), ring, tokenfake.NewFakeRefreshRepo(), token.NewInMemoryRevocationStore())
	require.NoError(t, err)

	passwordHash, err := users.HashPassword("Correct1Password")
	require.NoError(t, err)
	require.NoError(t, userRepo.Upsert(context.Background(), &users.User{
		ID:             "user-1",
		Email:          "user@example.com",
		PasswordHash:   passwordHash,
		TrustedDevices: []string{"device-1"},
	}))

	authService, err := auth.NewService(
		auth.Repos{Users: userRepo, Profiles: profileRepo, Sessions: sessionRepo},
		engine, tokens, mfa.NewProvider(userRepo), ratelimit.New(600, 100))
	require.NoError(t, err)

	srv, err := server.New(config.New(), server.Deps{Auth: authService, Tokens: tokens}, zerolog.Nop())
	require.NoError(t, err)
	return srv
}

func postJSON(t *testing.T, srv *server.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateEndpoint(t *testing.T) {
	srv := setupServer(t)

	rec := postJSON(t, srv, "/v1/auth/authenticate", map[string]string{
		"email":      "user@example.com",
		"password":   "Correct1Password",
		"device_id":  "device-1",
		"ip_address": "198.51.100.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result auth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)
	require.NotNil(t, result.Tokens)
	require.NotEmpty(t, result.Tokens.AccessToken)
}

func TestAuthenticateEndpointWrongPassword(t *testing.T) {
	srv := setupServer(t)

	rec := postJSON(t, srv, "/v1/auth/authenticate", map[string]string{
		"email":      "user@example.com",
		"password":   "Wrong1Password",
		"device_id":  "device-1",
		"ip_address": "198.51.100.7",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateEndpointMalformedBody(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/authenticate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAndIntrospectEndpoints(t *testing.T) {
	srv := setupServer(t)

	rec := postJSON(t, srv, "/v1/auth/authenticate", map[string]string{
		"email":      "user@example.com",
		"password":   "Correct1Password",
		"device_id":  "device-1",
		"ip_address": "198.51.100.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result auth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = postJSON(t, srv, "/v1/token/refresh", map[string]string{"refresh_token": result.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var pair token.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)

	// The presented refresh token was rotated out.
	rec = postJSON(t, srv, "/v1/token/refresh", map[string]string{"refresh_token": result.Tokens.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, srv, "/v1/token/introspect", map[string]string{"token": pair.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var introspection token.IntrospectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &introspection))
	require.True(t, introspection.Active)
	require.Equal(t, "user-1", *introspection.Sub)
}

func TestRevokeEndpoint(t *testing.T) {
	srv := setupServer(t)

	rec := postJSON(t, srv, "/v1/auth/authenticate", map[string]string{
		"email":      "user@example.com",
		"password":   "Correct1Password",
		"device_id":  "device-1",
		"ip_address": "198.51.100.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result auth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = postJSON(t, srv, "/v1/token/revoke", map[string]string{"token": result.Tokens.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv, "/v1/token/introspect", map[string]string{"token": result.Tokens.AccessToken})
	var introspection token.IntrospectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &introspection))
	require.False(t, introspection.Active)
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
