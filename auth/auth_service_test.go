package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/authcore-io/authcore/auth"
	sessionfakes "github.com/authcore-io/authcore/auth/sessions/repofakes"
	"github.com/authcore-io/authcore/events"
	"github.com/authcore-io/authcore/mfa"
	"github.com/authcore-io/authcore/ratelimit"
	"github.com/authcore-io/authcore/risk"
	profilefake "github.com/authcore-io/authcore/risk/profile/repofake"
	"github.com/authcore-io/authcore/token"
	tokenfake "github.com/authcore-io/authcore/token/repofake"
	"github.com/authcore-io/authcore/users"
	userfake "github.com/authcore-io/authcore/users/repofake"
)

// stubResolver flags known anonymizer addresses and maps everything else to a
// benign GB location.
type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ip string) (*risk.GeoInfo, error) {
	switch ip {
	case "203.0.113.66": // tor
		return &risk.GeoInfo{Location: risk.Location{Country: "DE"}, Tor: true}, nil
	case "203.0.113.99": // blocked country
		return &risk.GeoInfo{Location: risk.Location{Country: "KP"}}, nil
	default:
		return &risk.GeoInfo{Location: risk.Location{Country: "GB", Region: "England", City: "London"}}, nil
	}
}

type testFixture struct {
	service     *auth.Service
	userRepo    *userfake.FakeUserRepo
	profileRepo *profilefake.FakeProfileRepo
	sessionRepo *sessionfakes.FakeSessionRepo
	bus         *events.Bus
	user        *users.User
	totpSecret  string
	now         *time.Time
}

type fixtureConfig struct {
	ratePerMinute  int
	rateBurst      int
	maxAttempts    int
	mfaEnabled     bool
	trustedDevices []string
	serviceOptions []auth.ServiceOption
}

func setupService(t *testing.T, cfg fixtureConfig) *testFixture {
	t.Helper()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // Monday morning
	nowFunc := func() time.Time { return now }

	if cfg.ratePerMinute == 0 {
		cfg.ratePerMinute = 600
	}
	if cfg.rateBurst == 0 {
		cfg.rateBurst = 100
	}
	if cfg.maxAttempts == 0 {
		cfg.maxAttempts = 5
	}

	userRepo := userfake.NewFakeUserRepo()
	profileRepo := profilefake.NewFakeProfileRepo()
	sessionRepo := sessionfakes.NewFakeSessionRepo()
	bus := events.NewBus()

	policy := risk.DefaultPolicy()
	policy.Thresholds = risk.Thresholds{Medium: 40, High: 90, Critical: 95}
	policy.StepUpThreshold = 70
	policy.BlockedCountries = []string{"KP"}

	engine := risk.NewEngine(policy,
		[]risk.Analyzer{
			risk.NewGeoAnalyzer(stubResolver{}, policy),
			risk.NewDeviceAnalyzer(policy),
			risk.NewBehaviorAnalyzer(policy),
		},
		risk.NewMemoryCache(),
		profileRepo,
		risk.WithNowFunc(nowFunc),
	)

	keyPair, err := token.GenerateHMACKeyPair("key-1", now)
	require.NoError(t, err)
	ring, err := token.NewKeyRing(keyPair, 7*24*time.Hour, token.WithKeyRingNowFunc(nowFunc))
	require.NoError(t, err)
	tokens, err := token.New(token.NewHMACSigner(ring), ring, tokenfake.NewFakeRefreshRepo(),
		token.NewInMemoryRevocationStore(token.WithRevocationNowFunc(nowFunc)),
		token.WithNowFunc(nowFunc))
	require.NoError(t, err)

	mfaProvider := mfa.NewProvider(userRepo, mfa.WithNowFunc(nowFunc))
	secret, _, err := mfaProvider.GenerateTOTPSecret("user@example.com")
	require.NoError(t, err)

	passwordHash, err := users.HashPassword("Correct1Password")
	require.NoError(t, err)
	user := &users.User{
		ID:             "user-1",
		Email:          "user@example.com",
		PasswordHash:   passwordHash,
		MFAEnabled:     cfg.mfaEnabled,
		TrustedDevices: cfg.trustedDevices,
	}
	if cfg.mfaEnabled {
		user.TOTPSecret = secret
	}
	require.NoError(t, userRepo.Upsert(context.Background(), user))

	limiter := ratelimit.New(cfg.ratePerMinute, cfg.rateBurst, ratelimit.WithNowFunc(nowFunc))

	opts := append([]auth.ServiceOption{
		auth.WithNowTime(nowFunc),
		auth.WithEventBus(bus),
		auth.WithLockoutPolicy(cfg.maxAttempts, 15*time.Minute),
	}, cfg.serviceOptions...)

	service, err := auth.NewService(
		auth.Repos{Users: userRepo, Profiles: profileRepo, Sessions: sessionRepo},
		engine, tokens, mfaProvider, limiter, opts...)
	require.NoError(t, err)

	return &testFixture{
		service:     service,
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		bus:         bus,
		user:        user,
		totpSecret:  secret,
		now:         &now,
	}
}

func baseRequest() *auth.AuthenticationRequest {
	return &auth.AuthenticationRequest{
		Email:     "user@example.com",
		Password:  "Correct1Password",
		DeviceID:  "device-1",
		IPAddress: "198.51.100.7",
		UserAgent: "Mozilla/5.0",
		Location:  &risk.Location{Country: "GB", Region: "England", City: "London"},
	}
}

func TestAuthenticateValidation(t *testing.T) {
	f := setupService(t, fixtureConfig{})

	tests := []struct {
		name string
		req  *auth.AuthenticationRequest
	}{
		{"missing email", &auth.AuthenticationRequest{Password: "x", IPAddress: "198.51.100.7"}},
		{"malformed email", &auth.AuthenticationRequest{Email: "nope", Password: "x", IPAddress: "198.51.100.7"}},
		{"missing password", &auth.AuthenticationRequest{Email: "user@example.com", IPAddress: "198.51.100.7"}},
		{"malformed ip", &auth.AuthenticationRequest{Email: "user@example.com", Password: "x", IPAddress: "not-an-ip"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Authenticate(context.Background(), tc.req)
			require.Error(t, err)
		})
	}
}

func TestAuthenticateSuccessTrustedDeviceLowRisk(t *testing.T) {
	f := setupService(t, fixtureConfig{trustedDevices: []string{"device-1"}})

	var emitted []events.AuthenticationEvent
	f.bus.SubscribeAuthentication(func(e events.AuthenticationEvent) {
		emitted = append(emitted, e)
	})

	result, err := f.service.Authenticate(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)
	require.Nil(t, result.MFAChallenge)
	require.NotNil(t, result.Tokens)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotNil(t, result.Context)
	require.True(t, result.Context.TrustedDevice)
	require.Equal(t, []string{"pwd"}, result.Context.AuthMethods)
	require.Equal(t, risk.LevelLow, result.RiskAssessment.Level)

	require.Equal(t, 1, f.sessionRepo.Len())
	require.Len(t, emitted, 1)
	require.Equal(t, string(auth.OutcomeSuccess), emitted[0].Outcome)

	prof, err := f.profileRepo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, prof, "a successful login must seed the behavior profile")
	require.Equal(t, 1, prof.LoginCount)
}

func TestAuthenticateStepUpOnTorNewDevice(t *testing.T) {
	f := setupService(t, fixtureConfig{})

	req := baseRequest()
	req.IPAddress = "203.0.113.66"
	req.DeviceID = "never-seen-device"
	req.Location = nil

	result, err := f.service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeMFARequired, result.Outcome,
		"policy step-up must fire even with mfa disabled on the account")
	require.Nil(t, result.Tokens)
	require.NotNil(t, result.RiskAssessment)
	require.GreaterOrEqual(t, result.RiskAssessment.Score, 70.0)
	require.True(t, result.RiskAssessment.RequiresAdditionalAuth)
}

func TestAuthenticateRiskBlocked(t *testing.T) {
	f := setupService(t, fixtureConfig{trustedDevices: []string{"device-1"}})

	req := baseRequest()
	req.IPAddress = "203.0.113.99"
	req.Location = nil

	result, err := f.service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeRiskAssessmentFailed, result.Outcome)
	require.Nil(t, result.Tokens)
	require.True(t, result.RiskAssessment.Blocked)
	require.True(t, result.RiskAssessment.HasFactor("blocked_country"))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	f := setupService(t, fixtureConfig{})

	req := baseRequest()
	req.Email = "nobody@example.com"

	result, err := f.service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeInvalidCredentials, result.Outcome)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	f := setupService(t, fixtureConfig{})

	req := baseRequest()
	req.Password = "Wrong1Password"

	result, err := f.service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeInvalidCredentials, result.Outcome)

	stored, err := f.userRepo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.FailedLoginAttempts, "failure accounting must be applied before returning")
}

func TestAuthenticateLockout(t *testing.T) {
	f := setupService(t, fixtureConfig{maxAttempts: 3, trustedDevices: []string{"device-1"}})
	ctx := context.Background()

	wrong := baseRequest()
	wrong.Password = "Wrong1Password"

	for i := 0; i < 2; i++ {
		result, err := f.service.Authenticate(ctx, wrong)
		require.NoError(t, err)
		require.Equal(t, auth.OutcomeInvalidCredentials, result.Outcome)
	}

	// Third failure crosses the threshold.
	result, err := f.service.Authenticate(ctx, wrong)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeAccountLocked, result.Outcome)
	require.NotNil(t, result.LockedUntil)

	// Correct credentials are refused while locked.
	result, err = f.service.Authenticate(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeAccountLocked, result.Outcome)

	// After the lockout elapses the correct password works again.
	*f.now = f.now.Add(16 * time.Minute)
	result, err = f.service.Authenticate(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)

	stored, err := f.userRepo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 0, stored.FailedLoginAttempts, "success must reset failure accounting")
}

func TestAuthenticateRateLimited(t *testing.T) {
	f := setupService(t, fixtureConfig{ratePerMinute: 1, rateBurst: 1, trustedDevices: []string{"device-1"}})
	ctx := context.Background()

	result, err := f.service.Authenticate(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)

	result, err = f.service.Authenticate(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeRateLimited, result.Outcome)
}

func TestAuthenticateMFAChallengeAndVerify(t *testing.T) {
	f := setupService(t, fixtureConfig{mfaEnabled: true, trustedDevices: []string{"device-1"}})
	ctx := context.Background()

	// First pass without a code: challenged.
	result, err := f.service.Authenticate(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeMFARequired, result.Outcome)
	require.NotNil(t, result.MFAChallenge)
	require.Contains(t, result.MFAChallenge.Methods, mfa.MethodTOTP)

	// Second pass with a valid TOTP code: success with mfa in the method list.
	code, err := totp.GenerateCode(f.totpSecret, *f.now)
	require.NoError(t, err)

	req := baseRequest()
	req.MFACode = code
	req.MFAChallengeID = result.MFAChallenge.ID

	result, err = f.service.Authenticate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)
	require.Equal(t, []string{"pwd", "mfa"}, result.Context.AuthMethods)
}

func TestAuthenticateWrongMFACodeCountsAsFailure(t *testing.T) {
	f := setupService(t, fixtureConfig{mfaEnabled: true, trustedDevices: []string{"device-1"}})

	req := baseRequest()
	req.MFACode = "000000"

	result, err := f.service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeInvalidCredentials, result.Outcome)

	stored, err := f.userRepo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.FailedLoginAttempts)
}

func TestAuthenticateTrustDeviceOnRequest(t *testing.T) {
	f := setupService(t, fixtureConfig{mfaEnabled: true, trustedDevices: []string{"device-1"}})
	ctx := context.Background()

	code, err := totp.GenerateCode(f.totpSecret, *f.now)
	require.NoError(t, err)

	req := baseRequest()
	req.DeviceID = "brand-new-laptop"
	req.MFACode = code
	req.TrustDevice = true

	result, err := f.service.Authenticate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeSuccess, result.Outcome)

	stored, err := f.userRepo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, stored.FailedLoginAttempts == 0)
	require.Contains(t, stored.TrustedDevices, "brand-new-laptop")
}
