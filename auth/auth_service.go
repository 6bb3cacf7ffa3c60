// Package auth implements the authentication orchestrator: the state machine
// driving one login attempt from raw credentials to a token pair, a
// second-factor challenge, or a rejection.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/auth/sessions"
	"github.com/authcore-io/authcore/events"
	autherrors "github.com/authcore-io/authcore/internal/errors"
	"github.com/authcore-io/authcore/risk"
	"github.com/authcore-io/authcore/risk/profile"
	"github.com/authcore-io/authcore/token"
	"github.com/authcore-io/authcore/users"
)

const (
	methodPassword   = "pwd"
	methodMFA        = "mfa"
	dummyPasswordKey = "timing-equalizer-only"
)

// Repos holds the repository dependencies of the Service.
type Repos struct {
	Users    users.Repo   // Directory: lookup, lockout and failure accounting
	Profiles profile.Repo // Behavioral baselines, updated after each success
	Sessions sessions.Repo
}

// Service drives the authentication state machine. Every terminal outcome
// emits one audit entry and one observable event.
type Service struct {
	repos       Repos
	riskEngine  *risk.Engine
	tokens      *token.Manager
	mfaProvider MFAProvider
	rateLimiter RateLimiter
	audit       AuditSink
	bus         *events.Bus
	logger      zerolog.Logger

	maxLoginAttempts int
	lockoutDuration  time.Duration
	requireMFAForAll bool
	sessionTTL       time.Duration

	dummyHash string // compared against when the user does not exist
	nowFunc   func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) { s.nowFunc = nowFunc }
}

func WithLockoutPolicy(maxAttempts int, lockout time.Duration) ServiceOption {
	return func(s *Service) {
		s.maxLoginAttempts = maxAttempts
		s.lockoutDuration = lockout
	}
}

func WithRequireMFAForAll(require bool) ServiceOption {
	return func(s *Service) { s.requireMFAForAll = require }
}

func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.sessionTTL = ttl }
}

func WithEventBus(bus *events.Bus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) { s.audit = sink }
}

// NewService initializes the orchestrator with its required collaborators.
func NewService(
	repos Repos,
	riskEngine *risk.Engine,
	tokens *token.Manager,
	mfaProvider MFAProvider,
	rateLimiter RateLimiter,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions repo is required")
	}
	if riskEngine == nil {
		return nil, errors.New("[NewService] risk engine is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if mfaProvider == nil {
		return nil, errors.New("[NewService] mfa provider is required")
	}
	if rateLimiter == nil {
		return nil, errors.New("[NewService] rate limiter is required")
	}

	dummyHash, err := users.HashPassword(dummyPasswordKey)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService] dummy hash generation")
	}

	service := &Service{
		repos:            repos,
		riskEngine:       riskEngine,
		tokens:           tokens,
		mfaProvider:      mfaProvider,
		rateLimiter:      rateLimiter,
		logger:           zerolog.Nop(),
		maxLoginAttempts: 5,
		lockoutDuration:  15 * time.Minute,
		sessionTTL:       30 * 24 * time.Hour,
		dummyHash:        dummyHash,
		nowFunc:          time.Now,
	}
	for _, opt := range options {
		opt(service)
	}
	if service.audit == nil {
		service.audit = NewLogAuditSink(service.logger)
	}
	return service, nil
}

// Authenticate is the single entry point of the login state machine. It
// returns a terminal Result for every decided attempt; a non-nil error means
// a dependency failed mid-flow and the attempt may be retried. Access is
// never granted on a dependency failure.
func (s *Service) Authenticate(ctx context.Context, req *AuthenticationRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := s.nowFunc()

	if !s.rateLimiter.Allow(req.identity()) {
		return s.finish(ctx, start, req, nil, &Result{Outcome: OutcomeRateLimited}), nil
	}

	user, err := s.repos.Users.GetByEmail(ctx, req.Email)
	if err != nil || user == nil {
		// Burn a hash compare so lookup misses are not distinguishable from
		// wrong passwords by timing.
		users.CheckPasswordHash(req.Password, s.dummyHash)
		return s.finish(ctx, start, req, nil, &Result{Outcome: OutcomeInvalidCredentials}), nil
	}

	now := s.nowFunc()
	if user.Locked(now) {
		return s.finish(ctx, start, req, user, &Result{
			Outcome:     OutcomeAccountLocked,
			LockedUntil: user.LockedUntil,
		}), nil
	}

	if !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		lockedUntil := s.recordFailure(ctx, user.ID)
		if lockedUntil != nil {
			return s.finish(ctx, start, req, user, &Result{
				Outcome:     OutcomeAccountLocked,
				LockedUntil: lockedUntil,
			}), nil
		}
		return s.finish(ctx, start, req, user, &Result{Outcome: OutcomeInvalidCredentials}), nil
	}

	assessment := s.riskEngine.Assess(ctx, s.buildAttempt(req, user, now))
	if assessment.Blocked {
		return s.finish(ctx, start, req, user, &Result{
			Outcome:        OutcomeRiskAssessmentFailed,
			RiskAssessment: assessment,
		}), nil
	}

	trustedDevice := user.IsTrustedDevice(req.DeviceID)
	methods := []string{methodPassword}

	if s.mfaRequired(user, assessment, trustedDevice) {
		if req.MFACode == "" {
			challenge, err := s.mfaProvider.GenerateChallenge(ctx, user)
			if err != nil {
				s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("challenge generation failed")
			}
			return s.finish(ctx, start, req, user, &Result{
				Outcome:        OutcomeMFARequired,
				MFAChallenge:   challenge,
				RiskAssessment: assessment,
			}), nil
		}

		verified, err := s.verifySecondFactor(ctx, req, user)
		if err != nil {
			return nil, errors.Wrap(autherrors.ErrDependencyUnavailable, err.Error())
		}
		if !verified {
			lockedUntil := s.recordFailure(ctx, user.ID)
			if lockedUntil != nil {
				return s.finish(ctx, start, req, user, &Result{
					Outcome:     OutcomeAccountLocked,
					LockedUntil: lockedUntil,
				}), nil
			}
			return s.finish(ctx, start, req, user, &Result{Outcome: OutcomeInvalidCredentials}), nil
		}
		methods = append(methods, methodMFA)
	}

	result, err := s.commitSuccess(ctx, req, user, assessment, methods, trustedDevice)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, start, req, user, result), nil
}

// commitSuccess builds the authentication context, mints tokens, persists the
// session and resets failure accounting. Any dependency failure here aborts
// the attempt; it never degrades to a partial success.
func (s *Service) commitSuccess(ctx context.Context, req *AuthenticationRequest, user *users.User, assessment *risk.Assessment, methods []string, trustedDevice bool) (*Result, error) {
	now := s.nowFunc()
	authCtx := &Context{
		UserID:        user.ID,
		SessionID:     uuid.New().String(),
		DeviceID:      req.DeviceID,
		IPAddress:     req.IPAddress,
		Location:      req.Location,
		RiskScore:     assessment.Score,
		AuthMethods:   methods,
		TrustedDevice: trustedDevice,
		Timestamp:     now,
	}

	tokenPair, err := s.tokens.Issue(ctx, user.ID, token.IssueContext{
		SessionID:     authCtx.SessionID,
		DeviceID:      req.DeviceID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		RiskScore:     assessment.Score,
		AuthMethods:   methods,
		TrustedDevice: trustedDevice,
		AuthTime:      now,
	})
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrDependencyUnavailable, err.Error())
	}

	if err := s.repos.Sessions.Upsert(ctx, &sessions.Session{
		ID:          authCtx.SessionID,
		UserID:      user.ID,
		DeviceID:    req.DeviceID,
		IPAddress:   req.IPAddress,
		RiskScore:   assessment.Score,
		AuthMethods: methods,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
		RefreshedAt: now,
	}); err != nil {
		return nil, errors.Wrap(autherrors.ErrDependencyUnavailable, err.Error())
	}

	if err := s.repos.Users.ResetLoginFailures(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to reset failure counter")
	}
	if err := s.repos.Users.SetLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	if req.TrustDevice && req.DeviceID != "" && !trustedDevice {
		if err := s.repos.Users.AddTrustedDevice(ctx, user.ID, req.DeviceID); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to trust device")
		}
	}

	s.updateProfile(ctx, user.ID, req, now)

	return &Result{
		Outcome:        OutcomeSuccess,
		Context:        authCtx,
		Tokens:         tokenPair,
		RiskAssessment: assessment,
	}, nil
}

// mfaRequired applies the step-up decision: any single condition demands a
// second factor.
func (s *Service) mfaRequired(user *users.User, assessment *risk.Assessment, trustedDevice bool) bool {
	return user.MFAEnabled ||
		assessment.RequiresAdditionalAuth ||
		!trustedDevice ||
		s.requireMFAForAll
}

func (s *Service) verifySecondFactor(ctx context.Context, req *AuthenticationRequest, user *users.User) (bool, error) {
	if req.MFAChallengeID != "" {
		return s.mfaProvider.VerifyChallenge(ctx, req.MFAChallengeID, user, req.MFACode)
	}
	return s.mfaProvider.Verify(ctx, user, req.MFACode)
}

// recordFailure applies lockout accounting before the outcome is returned, so
// an abandoned attempt cannot skip it. Returns the lockout expiry when this
// failure crossed the threshold.
func (s *Service) recordFailure(ctx context.Context, userID string) *time.Time {
	_, lockedUntil, err := s.repos.Users.RecordLoginFailure(ctx, userID, s.nowFunc(), s.maxLoginAttempts, s.lockoutDuration)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failure accounting failed")
		return nil
	}
	return lockedUntil
}

func (s *Service) buildAttempt(req *AuthenticationRequest, user *users.User, now time.Time) *risk.LoginAttempt {
	return &risk.LoginAttempt{
		UserID:    user.ID,
		Email:     user.Email,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Device: risk.DeviceInfo{
			ID:         req.DeviceID,
			Jailbroken: req.Jailbroken,
			Emulator:   req.Emulator,
		},
		NewDevice:     !user.IsTrustedDevice(req.DeviceID),
		PriorFailures: user.FailedLoginAttempts,
		Location:      req.Location,
		LastLoginAt:   user.LastLoginAt,
		Timestamp:     now,
	}
}

// updateProfile folds the successful login into the behavioral baseline.
// Profile storage is best-effort; a failure degrades future assessments, not
// this login.
func (s *Service) updateProfile(ctx context.Context, userID string, req *AuthenticationRequest, now time.Time) {
	if s.repos.Profiles == nil {
		return
	}
	prof, err := s.repos.Profiles.Get(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("profile load failed, skipping update")
		return
	}
	if prof == nil {
		prof = profile.New(userID, now)
	}

	obs := profile.LoginObservation{DeviceID: req.DeviceID, At: now}
	if req.Location != nil {
		obs.Country = req.Location.Country
		obs.Region = req.Location.Region
		obs.City = req.Location.City
		obs.Latitude = req.Location.Latitude
		obs.Longitude = req.Location.Longitude
		obs.HasCoords = req.Location.HasCoords
	}
	prof.RecordLogin(obs)

	if err := s.repos.Profiles.Upsert(ctx, prof); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("profile update failed")
	}
}

// finish emits the audit entry and observable event for a terminal outcome.
func (s *Service) finish(ctx context.Context, start time.Time, req *AuthenticationRequest, user *users.User, result *Result) *Result {
	now := s.nowFunc()
	entry := AuditEntry{
		Email:     req.Email,
		IPAddress: req.IPAddress,
		DeviceID:  req.DeviceID,
		Outcome:   result.Outcome,
		Duration:  now.Sub(start),
		Timestamp: now,
	}
	if user != nil {
		entry.UserID = user.ID
	}
	if result.RiskAssessment != nil {
		entry.RiskScore = result.RiskAssessment.Score
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("audit sink failed")
	}

	event := events.AuthenticationEvent{
		UserID:    entry.UserID,
		Outcome:   string(result.Outcome),
		IPAddress: req.IPAddress,
		RiskScore: entry.RiskScore,
		Duration:  entry.Duration,
		Timestamp: now,
	}
	if result.Context != nil {
		event.SessionID = result.Context.SessionID
	}
	s.bus.PublishAuthentication(event)

	return result
}
