package risk_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/authcore-io/authcore/risk"
	"github.com/authcore-io/authcore/risk/profile"
	profilerepofake "github.com/authcore-io/authcore/risk/profile/repofake"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// stubAnalyzer returns a fixed factor set, an error, or blocks until the
// context is cancelled.
type stubAnalyzer struct {
	name    string
	factors []risk.Factor
	err     error
	block   bool
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(ctx context.Context, _ *risk.LoginAttempt, _ *profile.Profile) ([]risk.Factor, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.factors, s.err
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*risk.Assessment, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, *risk.Assessment, time.Duration) error {
	return errors.New("connection refused")
}

func testAttempt() *risk.LoginAttempt {
	return &risk.LoginAttempt{
		UserID:    "user-1",
		IPAddress: "203.0.113.7",
		Device:    risk.DeviceInfo{ID: "dev-1"},
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
}

func newEngine(t *testing.T, analyzers []risk.Analyzer, opts ...risk.EngineOption) *risk.Engine {
	t.Helper()
	return risk.NewEngine(risk.DefaultPolicy(), analyzers, nil, profilerepofake.NewFakeProfileRepo(), opts...)
}

func TestScoreClampedAndLevelMonotonic(t *testing.T) {
	policy := risk.DefaultPolicy()
	rng := rand.New(rand.NewSource(42))

	prevLevelRank := -1
	for score := 0.0; score <= policy.MaxScore; score += 5 {
		rank := levelRank(policy.LevelFor(score))
		require.GreaterOrEqual(t, rank, prevLevelRank, "level must be non-decreasing in score")
		prevLevelRank = rank
	}

	for i := 0; i < 50; i++ {
		analyzer := &stubAnalyzer{name: "stub", factors: randomFactors(rng)}
		e := newEngine(t, []risk.Analyzer{analyzer})
		a := e.Assess(context.Background(), testAttempt())
		require.GreaterOrEqual(t, a.Score, 0.0)
		require.LessOrEqual(t, a.Score, policy.MaxScore)
	}
}

func TestBlockedPredicateOverRandomFactorSets(t *testing.T) {
	policy := risk.DefaultPolicy()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		factors := randomFactors(rng)
		e := newEngine(t, []risk.Analyzer{&stubAnalyzer{name: "stub", factors: factors}})
		a := e.Assess(context.Background(), testAttempt())

		anyCritical := false
		for _, f := range factors {
			if f.Severity == risk.SeverityCritical {
				anyCritical = true
			}
		}
		expected := a.Score >= policy.Thresholds.High || anyCritical
		require.Equal(t, expected, a.Blocked, "factors=%v score=%v", factors, a.Score)
	}
}

func TestConfidenceIsMeanOfFactors(t *testing.T) {
	e := newEngine(t, []risk.Analyzer{&stubAnalyzer{name: "stub", factors: []risk.Factor{
		{Category: risk.CategoryDevice, Type: "a", Score: 10, Weight: 1, Severity: risk.SeverityLow, Confidence: 60},
		{Category: risk.CategoryDevice, Type: "b", Score: 10, Weight: 1, Severity: risk.SeverityLow, Confidence: 80},
	}}})
	a := e.Assess(context.Background(), testAttempt())
	require.InDelta(t, 70, a.Confidence, 0.001)
}

func TestConfidenceDefaultsTo100WithoutFactors(t *testing.T) {
	e := newEngine(t, []risk.Analyzer{&stubAnalyzer{name: "stub"}})
	a := e.Assess(context.Background(), testAttempt())
	require.Equal(t, 100.0, a.Confidence)
	require.Equal(t, risk.LevelLow, a.Level)
	require.False(t, a.Blocked)
}

func TestAnalyzerFailureIsAbsorbed(t *testing.T) {
	good := &stubAnalyzer{name: "good", factors: []risk.Factor{
		{Category: risk.CategoryDevice, Type: "new_device", Score: 25, Weight: 1, Severity: risk.SeverityMedium, Confidence: 85},
	}}
	bad := &stubAnalyzer{name: "bad", err: errors.New("resolver down")}

	e := newEngine(t, []risk.Analyzer{bad, good})
	a := e.Assess(context.Background(), testAttempt())

	require.Len(t, a.Factors, 1)
	require.Equal(t, 25.0, a.Score)
}

func TestSlowAnalyzerDoesNotBlockAssessment(t *testing.T) {
	policy := risk.DefaultPolicy()
	policy.AnalyzerTimeout = 50 * time.Millisecond

	good := &stubAnalyzer{name: "good", factors: []risk.Factor{
		{Category: risk.CategoryDevice, Type: "new_device", Score: 25, Weight: 1, Severity: risk.SeverityMedium, Confidence: 85},
	}}
	slow := &stubAnalyzer{name: "slow", block: true}

	e := risk.NewEngine(policy, []risk.Analyzer{good, slow}, nil, profilerepofake.NewFakeProfileRepo())

	done := make(chan *risk.Assessment, 1)
	go func() { done <- e.Assess(context.Background(), testAttempt()) }()

	select {
	case a := <-done:
		require.Equal(t, 25.0, a.Score)
	case <-time.After(2 * time.Second):
		t.Fatal("assessment blocked on slow analyzer")
	}
}

func TestCacheBackendDownFailsClosed(t *testing.T) {
	e := risk.NewEngine(risk.DefaultPolicy(), []risk.Analyzer{&stubAnalyzer{name: "stub"}}, failingCache{}, profilerepofake.NewFakeProfileRepo())

	var a *risk.Assessment
	require.NotPanics(t, func() {
		a = e.Assess(context.Background(), testAttempt())
	})

	require.True(t, a.Blocked)
	require.True(t, a.HasFactor("system_error"))
	require.Equal(t, risk.LevelCritical, a.Level)
}

func TestIdenticalAttemptsAreServedFromCache(t *testing.T) {
	calls := 0
	counting := &countingAnalyzer{calls: &calls}
	e := newEngine(t, []risk.Analyzer{counting})

	attempt := testAttempt()
	first := e.Assess(context.Background(), attempt)
	second := e.Assess(context.Background(), attempt)

	require.Equal(t, 1, calls)
	require.Equal(t, first.Score, second.Score)
}

type countingAnalyzer struct {
	calls *int
}

func (c *countingAnalyzer) Name() string { return "counting" }

func (c *countingAnalyzer) Analyze(context.Context, *risk.LoginAttempt, *profile.Profile) ([]risk.Factor, error) {
	*c.calls++
	return nil, nil
}

type fixedModel struct {
	score float64
}

func (m fixedModel) Score(context.Context, *risk.LoginAttempt) (float64, error) {
	return m.score, nil
}

func TestModelBlendAveragesScores(t *testing.T) {
	policy := risk.DefaultPolicy()
	policy.ModelBlend = true

	analyzer := &stubAnalyzer{name: "stub", factors: []risk.Factor{
		{Category: risk.CategoryDevice, Type: "new_device", Score: 40, Weight: 1, Severity: risk.SeverityMedium, Confidence: 85},
	}}
	e := risk.NewEngine(policy, []risk.Analyzer{analyzer}, nil, profilerepofake.NewFakeProfileRepo(),
		risk.WithModelScorer(fixedModel{score: 80}))

	a := e.Assess(context.Background(), testAttempt())
	require.InDelta(t, 60, a.Score, 0.001) // (40 + 80) / 2
}

func randomFactors(rng *rand.Rand) []risk.Factor {
	severities := []risk.Severity{risk.SeverityLow, risk.SeverityMedium, risk.SeverityHigh, risk.SeverityCritical}
	n := rng.Intn(6)
	factors := make([]risk.Factor, 0, n)
	for i := 0; i < n; i++ {
		factors = append(factors, risk.Factor{
			Category:   risk.CategoryDevice,
			Type:       "random",
			Score:      rng.Float64() * 100,
			Weight:     rng.Float64() * 2,
			Severity:   severities[rng.Intn(len(severities))],
			Confidence: rng.Float64() * 100,
		})
	}
	return factors
}

func levelRank(l risk.Level) int {
	switch l {
	case risk.LevelLow:
		return 0
	case risk.LevelMedium:
		return 1
	case risk.LevelHigh:
		return 2
	default:
		return 3
	}
}
