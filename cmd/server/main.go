package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/auth"
	sessionfakes "github.com/authcore-io/authcore/auth/sessions/repofakes"
	"github.com/authcore-io/authcore/events"
	"github.com/authcore-io/authcore/internal/config"
	"github.com/authcore-io/authcore/mfa"
	"github.com/authcore-io/authcore/ratelimit"
	"github.com/authcore-io/authcore/risk"
	"github.com/authcore-io/authcore/risk/profile"
	profilefake "github.com/authcore-io/authcore/risk/profile/repofake"
	"github.com/authcore-io/authcore/server"
	"github.com/authcore-io/authcore/store/redisstore"
	"github.com/authcore-io/authcore/token"
	tokenfake "github.com/authcore-io/authcore/token/repofake"
	userfake "github.com/authcore-io/authcore/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := newLogger(c)

	deps, stopRotation, err := buildServices(c, logger)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}
	defer stopRotation()

	httpServer, err := server.New(c, deps, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: httpServer}
	go listenAndServe(srv, logger)
	waitForStopSignal()
	returnError = shutdown(srv)
	return returnError
}

// buildServices constructs the full dependency graph explicitly; nothing in
// the core reaches for process-wide singletons.
func buildServices(c config.Config, logger zerolog.Logger) (server.Deps, func(), error) {
	bus := events.NewBus()
	ctx := context.Background()

	policy, err := loadPolicy(c)
	if err != nil {
		return server.Deps{}, nil, err
	}

	// Stores: Redis when configured, in-memory otherwise (single instance).
	var (
		revocations token.RevocationStore
		refreshRepo token.RefreshRepo
		riskCache   risk.Cache
		profileRepo profile.Repo
	)
	if addr := c.GetRedisAddr(); addr != "" {
		client, err := redisstore.Connect(ctx, addr)
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("redis connect: %w", err)
		}
		revocations = redisstore.NewRevocationStore(client)
		refreshRepo = redisstore.NewRefreshRepo(client)
		riskCache = redisstore.NewRiskCache(client)
		profileRepo = redisstore.NewProfileRepo(client)
		logger.Info().Str("addr", addr).Msg("using redis-backed stores")
	} else {
		revocations = token.NewInMemoryRevocationStore()
		refreshRepo = tokenfake.NewFakeRefreshRepo()
		riskCache = risk.NewMemoryCache()
		profileRepo = profilefake.NewFakeProfileRepo()
		logger.Warn().Msg("no REDIS_ADDR configured, using in-memory stores")
	}

	// The user directory is an external collaborator; the bundled in-memory
	// repo serves development and tests.
	userRepo := userfake.NewFakeUserRepo()
	sessionRepo := sessionfakes.NewFakeSessionRepo()

	engine := risk.NewEngine(policy,
		[]risk.Analyzer{
			risk.NewGeoAnalyzer(unresolvedGeo{}, policy),
			risk.NewDeviceAnalyzer(policy),
			risk.NewBehaviorAnalyzer(policy),
			risk.NewNetworkAnalyzer(residentialNetwork{}, policy),
			risk.NewTemporalAnalyzer(policy),
			risk.NewThreatIntelAnalyzer(emptyThreatFeed{}, policy),
		},
		riskCache, profileRepo,
		risk.WithEventBus(bus),
		risk.WithLogger(logger),
	)

	keyPair, err := initialKeyPair(c)
	if err != nil {
		return server.Deps{}, nil, err
	}
	ring, err := token.NewKeyRing(keyPair, c.GetKeyRetentionPeriod())
	if err != nil {
		return server.Deps{}, nil, err
	}
	signer, err := token.NewSigner(c.GetSignerType(), ring)
	if err != nil {
		return server.Deps{}, nil, err
	}
	tokens, err := token.New(signer, ring, refreshRepo, revocations,
		token.WithIssuer(c.GetIssuer()),
		token.WithAudience(c.GetAudience()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
		token.WithClockSkew(c.GetClockSkew()),
		token.WithEventBus(bus),
		token.WithManagerLogger(logger),
	)
	if err != nil {
		return server.Deps{}, nil, err
	}

	mfaProvider := mfa.NewProvider(userRepo,
		mfa.WithIssuer(c.GetAppName()),
		mfa.WithLogger(logger),
	)
	limiter := ratelimit.New(c.GetRateLimitPerMinute(), c.GetRateLimitBurst())

	authService, err := auth.NewService(
		auth.Repos{Users: userRepo, Profiles: profileRepo, Sessions: sessionRepo},
		engine, tokens, mfaProvider, limiter,
		auth.WithLockoutPolicy(c.GetMaxLoginAttempts(), c.GetLockoutDuration()),
		auth.WithRequireMFAForAll(c.GetRequireMFAForAll()),
		auth.WithEventBus(bus),
		auth.WithLogger(logger),
	)
	if err != nil {
		return server.Deps{}, nil, err
	}

	agentService, err := auth.NewAgentService(agentRepo(), limiter, auth.WithAgentLogger(logger))
	if err != nil {
		return server.Deps{}, nil, err
	}

	stopRotation := startKeyRotation(c, tokens, logger)

	return server.Deps{Auth: authService, Agents: agentService, Tokens: tokens}, stopRotation, nil
}

func loadPolicy(c config.Config) (risk.Policy, error) {
	if path := c.GetRiskPolicyPath(); path != "" {
		return risk.LoadPolicy(path)
	}
	return risk.DefaultPolicy(), nil
}

// initialKeyPair builds the first signing key. HMAC deployments may pin the
// secret via config so all instances verify each other's tokens.
func initialKeyPair(c config.Config) (*token.KeyPair, error) {
	now := time.Now()
	keyID := "key-" + uuid.New().String()[:8]

	switch c.GetSignerType() {
	case "hmac":
		if secret := c.GetHMACSecret(); secret != "" {
			return token.HMACKeyPairFromSecret(keyID, secret, now), nil
		}
		return token.GenerateHMACKeyPair(keyID, now)
	default:
		return token.GenerateRSAKeyPair(keyID, 2048, now)
	}
}

// startKeyRotation swaps in a fresh signing key on the configured interval.
// Retired keys keep verifying for the retention period.
func startKeyRotation(c config.Config, tokens *token.Manager, logger zerolog.Logger) func() {
	interval := c.GetKeyRotationInterval()
	if interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				next, err := initialKeyPair(c)
				if err != nil {
					logger.Error().Err(err).Msg("key rotation failed, keeping current key")
					continue
				}
				tokens.RotateKeys(next)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

func agentRepo() auth.AgentRepo {
	return &memAgentRepo{byKeyHash: make(map[string]*auth.AgentCredential)}
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(srv *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
