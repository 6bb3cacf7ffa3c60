package risk

import (
	"context"
	"time"

	"github.com/authcore-io/authcore/events"
	"github.com/authcore-io/authcore/internal/ttlcache"
	"github.com/authcore-io/authcore/risk/profile"
	"github.com/rs/zerolog"
)

// Analyzer examines one login attempt and emits zero or more factors.
// Analyzers must be side-effect-free reads so the engine can fan them out
// concurrently. A returned error (or panic, or timeout) makes the analyzer
// contribute nothing; it never fails the assessment.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, attempt *LoginAttempt, prof *profile.Profile) ([]Factor, error)
}

// ModelScorer optionally blends an external model score in [0,100] with the
// weighted factor sum.
type ModelScorer interface {
	Score(ctx context.Context, attempt *LoginAttempt) (float64, error)
}

// Cache stores assessments keyed by (user, ip, device) for the aggregation
// window, so rapid-fire identical attempts are not re-scored. Entries expire
// on TTL only.
type Cache interface {
	Get(ctx context.Context, key string) (*Assessment, bool, error)
	Set(ctx context.Context, key string, a *Assessment, ttl time.Duration) error
}

// MemoryCache is the in-process Cache implementation.
type MemoryCache struct {
	cache *ttlcache.Cache[*Assessment]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: ttlcache.New[*Assessment]()}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Assessment, bool, error) {
	a, ok := m.cache.Get(key)
	return a, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, a *Assessment, ttl time.Duration) error {
	m.cache.Set(key, a, ttl)
	return nil
}

// Engine scores login attempts. Assess never returns an error: per-analyzer
// failures are absorbed, and an engine-level failure (cache backend
// unreachable) yields a synthetic blocked result rather than defaulting to
// allow.
type Engine struct {
	policy    Policy
	analyzers []Analyzer
	cache     Cache
	profiles  profile.Repo
	model     ModelScorer
	bus       *events.Bus
	logger    zerolog.Logger
	nowFunc   func() time.Time
}

type EngineOption func(*Engine)

func WithModelScorer(m ModelScorer) EngineOption {
	return func(e *Engine) { e.model = m }
}

func WithEventBus(bus *events.Bus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) { e.nowFunc = now }
}

// NewEngine creates a risk engine over the given analyzers. A nil cache
// falls back to the in-memory implementation.
func NewEngine(policy Policy, analyzers []Analyzer, cache Cache, profiles profile.Repo, options ...EngineOption) *Engine {
	e := &Engine{
		policy:    policy,
		analyzers: analyzers,
		cache:     cache,
		profiles:  profiles,
		logger:    zerolog.Nop(),
		nowFunc:   time.Now,
	}
	if e.cache == nil {
		e.cache = NewMemoryCache()
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

type analyzerResult struct {
	index   int
	name    string
	factors []Factor
	err     error
}

// Assess scores the attempt. It always returns a non-nil assessment.
func (e *Engine) Assess(ctx context.Context, attempt *LoginAttempt) *Assessment {
	start := e.nowFunc()
	key := attempt.cacheKey()

	cached, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", attempt.UserID).Msg("risk cache unreachable")
		return e.systemErrorAssessment(start)
	}
	if hit {
		return cached
	}

	prof := e.loadProfile(ctx, attempt.UserID)
	factors := e.runAnalyzers(ctx, attempt, prof)
	assessment := e.score(ctx, attempt, factors)
	assessment.ProcessingTime = e.nowFunc().Sub(start)

	if err := e.cache.Set(ctx, key, assessment, e.policy.CacheTTL); err != nil {
		e.logger.Warn().Err(err).Msg("risk cache write failed")
	}

	e.bus.PublishRiskAssessed(events.RiskAssessedEvent{
		UserID:    attempt.UserID,
		IPAddress: attempt.IPAddress,
		Score:     assessment.Score,
		Level:     string(assessment.Level),
		Blocked:   assessment.Blocked,
		Timestamp: e.nowFunc(),
	})

	return assessment
}

// loadProfile reads the behavior baseline; a store failure degrades to no
// profile (the behavioral analyzer stays silent) rather than failing the
// assessment.
func (e *Engine) loadProfile(ctx context.Context, userID string) *profile.Profile {
	if e.profiles == nil || userID == "" {
		return nil
	}
	prof, err := e.profiles.Get(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("profile load failed")
		return nil
	}
	return prof
}

// runAnalyzers fans the analyzers out concurrently under the per-request
// timeout and collects factors in analyzer registration order. A slow,
// failing, or panicking analyzer contributes zero factors.
func (e *Engine) runAnalyzers(ctx context.Context, attempt *LoginAttempt, prof *profile.Profile) []Factor {
	ctx, cancel := context.WithTimeout(ctx, e.policy.AnalyzerTimeout)
	defer cancel()

	results := make(chan analyzerResult, len(e.analyzers))
	for i, a := range e.analyzers {
		go func(index int, a Analyzer) {
			defer func() {
				if r := recover(); r != nil {
					results <- analyzerResult{index: index, name: a.Name(), err: panicError{r}}
				}
			}()
			factors, err := a.Analyze(ctx, attempt, prof)
			results <- analyzerResult{index: index, name: a.Name(), factors: factors, err: err}
		}(i, a)
	}

	collected := make([][]Factor, len(e.analyzers))
	for range e.analyzers {
		select {
		case res := <-results:
			if res.err != nil {
				e.logger.Warn().Err(res.err).Str("analyzer", res.name).Msg("analyzer failed, contributing no factors")
				continue
			}
			collected[res.index] = res.factors
		case <-ctx.Done():
			e.logger.Warn().Msg("analyzer timeout, remaining analyzers contribute no factors")
			return flatten(collected)
		}
	}
	return flatten(collected)
}

func flatten(groups [][]Factor) []Factor {
	var out []Factor
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// score applies the weighted sum, optional model blend, clamping, and the
// level/blocked/step-up predicates.
func (e *Engine) score(ctx context.Context, attempt *LoginAttempt, factors []Factor) *Assessment {
	raw := e.policy.BaseScore
	anyCritical := false
	confidenceSum := 0.0
	for _, f := range factors {
		raw += f.Score * f.Weight
		confidenceSum += f.Confidence
		if f.Severity == SeverityCritical {
			anyCritical = true
		}
	}

	if e.policy.ModelBlend && e.model != nil {
		if modelScore, err := e.model.Score(ctx, attempt); err != nil {
			e.logger.Warn().Err(err).Msg("model scorer failed, using traditional score only")
		} else {
			raw = (raw + modelScore) / 2
		}
	}

	score := clamp(raw, 0, e.policy.MaxScore)
	level := e.policy.LevelFor(score)

	confidence := 100.0
	if len(factors) > 0 {
		confidence = confidenceSum / float64(len(factors))
	}

	return &Assessment{
		Score:                  score,
		Level:                  level,
		Blocked:                score >= e.policy.Thresholds.High || anyCritical,
		Factors:                factors,
		RequiresAdditionalAuth: score >= e.policy.StepUpThreshold,
		AllowedMethods:         allowedMethodsFor(level),
		Confidence:             confidence,
	}
}

// systemErrorAssessment is the fail-closed result for total engine failure.
func (e *Engine) systemErrorAssessment(start time.Time) *Assessment {
	return &Assessment{
		Score:   e.policy.MaxScore,
		Level:   LevelCritical,
		Blocked: true,
		Factors: []Factor{{
			Category:   CategoryNetwork,
			Type:       "system_error",
			Score:      e.policy.MaxScore,
			Weight:     1,
			Severity:   SeverityCritical,
			Confidence: 100,
		}},
		RequiresAdditionalAuth: true,
		Confidence:             100,
		ProcessingTime:         e.nowFunc().Sub(start),
	}
}

func allowedMethodsFor(level Level) []string {
	switch level {
	case LevelLow, LevelMedium:
		return []string{"totp", "backup_code", "webauthn"}
	case LevelHigh:
		return []string{"totp", "webauthn"}
	default:
		return []string{"webauthn"}
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type panicError struct {
	value any
}

func (p panicError) Error() string { return "analyzer panicked" }
