package refine

import (
	"testing"

	"carmatch-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ip(v int) *int         { return &v }
func fp(v float64) *float64 { return &v }
func sp(v string) *string   { return &v }

func testService() *Service {
	return New(0.85, 1.15, 0.15)
}

func TestApply_CheaperChain(t *testing.T) {
	s := testService()
	profile := domain.PreferenceProfile{BudgetMax: ip(40000)}

	once, err := s.Apply(profile, "cheaper", nil)
	require.NoError(t, err)
	assert.Equal(t, 34000, *once.BudgetMax)

	twice, err := s.Apply(once, "cheaper", nil)
	require.NoError(t, err)
	assert.Equal(t, 28900, *twice.BudgetMax)
}

func TestApply_CheaperWithoutBudgetAnchorsOnMatches(t *testing.T) {
	s := testService()
	avgs := []float64{20000, 30000, 40000}
	matches := make([]domain.MatchResult, len(avgs))
	for i := range avgs {
		matches[i] = domain.MatchResult{Profile: &domain.CarProfile{AvgPrice: &avgs[i]}}
	}

	refined, err := s.Apply(domain.PreferenceProfile{}, "cheaper", matches)
	require.NoError(t, err)
	// Median of the current matches (30000) becomes the anchor.
	require.NotNil(t, refined.BudgetMax)
	assert.Equal(t, 25500, *refined.BudgetMax)
}

func TestApply_CheaperWithNothingToAnchorOn(t *testing.T) {
	s := testService()
	refined, err := s.Apply(domain.PreferenceProfile{}, "cheaper", nil)
	require.NoError(t, err)
	assert.Nil(t, refined.BudgetMax)
}

func TestApply_Pricier(t *testing.T) {
	s := testService()
	refined, err := s.Apply(domain.PreferenceProfile{BudgetMax: ip(20000)}, "pricier", nil)
	require.NoError(t, err)
	assert.Equal(t, 23000, *refined.BudgetMax)
}

func TestApply_PriorityDirectives(t *testing.T) {
	s := testService()

	refined, err := s.Apply(domain.PreferenceProfile{}, "more-reliable", nil)
	require.NoError(t, err)
	// Unset priority starts from the neutral baseline.
	assert.InDelta(t, 0.45, *refined.ReliabilityPriority, 1e-9)

	refined, err = s.Apply(domain.PreferenceProfile{PerformancePriority: fp(0.95)}, "sportier", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *refined.PerformancePriority)
	assert.Equal(t, []string{"fun", "aggressive"}, refined.EmotionalTags)

	refined, err = s.Apply(domain.PreferenceProfile{FunPriority: fp(0.5), EmotionalTags: []string{"Fun", "sleek"}}, "more-fun", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, *refined.FunPriority, 1e-9)
	// Already-present tags are not duplicated.
	assert.Equal(t, []string{"Fun", "sleek"}, refined.EmotionalTags)
}

func TestApply_BodySizeLadder(t *testing.T) {
	s := testService()

	refined, err := s.Apply(domain.PreferenceProfile{BodyStyle: sp("sedan")}, "bigger", nil)
	require.NoError(t, err)
	assert.Equal(t, "wagon", *refined.BodyStyle)

	refined, err = s.Apply(domain.PreferenceProfile{BodyStyle: sp("sedan")}, "smaller", nil)
	require.NoError(t, err)
	assert.Equal(t, "coupe", *refined.BodyStyle)

	// Ladder ends stay put.
	refined, err = s.Apply(domain.PreferenceProfile{BodyStyle: sp("truck")}, "bigger", nil)
	require.NoError(t, err)
	assert.Equal(t, "truck", *refined.BodyStyle)

	// Unset stays unset: nothing to size relative to.
	refined, err = s.Apply(domain.PreferenceProfile{}, "bigger", nil)
	require.NoError(t, err)
	assert.Nil(t, refined.BodyStyle)
}

func TestApply_DrivetrainDirectives(t *testing.T) {
	s := testService()

	refined, err := s.Apply(domain.PreferenceProfile{}, "awd", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DrivetrainAWD, *refined.Drivetrain)

	d := domain.DrivetrainRWD
	refined, err = s.Apply(domain.PreferenceProfile{Drivetrain: &d}, "any-drivetrain", nil)
	require.NoError(t, err)
	assert.Nil(t, refined.Drivetrain)
}

func TestApply_UnknownDirective(t *testing.T) {
	s := testService()
	_, err := s.Apply(domain.PreferenceProfile{}, "faster-than-light", nil)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Contains(t, err.Error(), "cheaper")
}

func TestApply_NeverMutatesInput(t *testing.T) {
	s := testService()
	ref := sp("my old miata")
	usage := sp("daily")
	profile := domain.PreferenceProfile{
		BudgetMax:    ip(40000),
		ReferenceCar: ref,
		UsageContext: usage,
	}

	refined, err := s.Apply(profile, "cheaper", nil)
	require.NoError(t, err)
	assert.Equal(t, 40000, *profile.BudgetMax)
	assert.Equal(t, 34000, *refined.BudgetMax)
	// Identity fields pass through untouched.
	assert.Equal(t, "my old miata", *refined.ReferenceCar)
	assert.Equal(t, "daily", *refined.UsageContext)
}
