package refine

import (
	"math"
	"sort"
	"strings"

	"carmatch-backend/internal/domain"
)

// Directive is one recognized refinement instruction from the closed set.
type Directive string

const (
	DirectiveCheaper       Directive = "cheaper"
	DirectivePricier       Directive = "pricier"
	DirectiveMoreReliable  Directive = "more-reliable"
	DirectiveMoreFun       Directive = "more-fun"
	DirectiveSportier      Directive = "sportier"
	DirectiveBigger        Directive = "bigger"
	DirectiveSmaller       Directive = "smaller"
	DirectiveAWD           Directive = "awd"
	DirectiveRWD           Directive = "rwd"
	DirectiveFWD           Directive = "fwd"
	Directive4WD           Directive = "4wd"
	DirectiveAnyDrivetrain Directive = "any-drivetrain"
)

var acceptedDirectives = []string{
	string(DirectiveCheaper), string(DirectivePricier),
	string(DirectiveMoreReliable), string(DirectiveMoreFun), string(DirectiveSportier),
	string(DirectiveBigger), string(DirectiveSmaller),
	string(DirectiveAWD), string(DirectiveRWD), string(DirectiveFWD), string(Directive4WD),
	string(DirectiveAnyDrivetrain),
}

// bodySizeLadder orders body styles from smallest to largest for the
// bigger/smaller directives.
var bodySizeLadder = []string{"coupe", "sedan", "wagon", "suv", "truck"}

// Service applies refinement directives to preference profiles. Every
// transform works on a deep copy; the caller's profile is never mutated.
type Service struct {
	// CheaperFactor and PricierFactor multiply the budget (e.g. 0.85 and 1.15).
	CheaperFactor float64
	PricierFactor float64
	// PriorityStep is the fixed nudge applied by priority-raising directives.
	PriorityStep float64
}

// New creates a refinement service with the given tuning values.
func New(cheaperFactor, pricierFactor, priorityStep float64) *Service {
	return &Service{
		CheaperFactor: cheaperFactor,
		PricierFactor: pricierFactor,
		PriorityStep:  priorityStep,
	}
}

// Apply resolves a directive against a profile and returns the refined copy.
// The current top matches supply a budget anchor when the user asks for
// "cheaper" without ever stating a budget. Unknown directives fail with a
// ConfigurationError naming the accepted set; identity and usage context are
// never touched by any directive.
func (s *Service) Apply(profile domain.PreferenceProfile, directive string, matches []domain.MatchResult) (domain.PreferenceProfile, error) {
	out := profile.Clone()
	switch Directive(strings.ToLower(strings.TrimSpace(directive))) {
	case DirectiveCheaper:
		budget := s.resolveBudget(out, matches)
		if budget > 0 {
			next := int(math.Round(float64(budget) * s.CheaperFactor))
			out.BudgetMax = &next
		}
	case DirectivePricier:
		budget := s.resolveBudget(out, matches)
		if budget > 0 {
			next := int(math.Round(float64(budget) * s.PricierFactor))
			out.BudgetMax = &next
		}
	case DirectiveMoreReliable:
		out.ReliabilityPriority = s.raise(out.ReliabilityPriority)
	case DirectiveMoreFun:
		out.FunPriority = s.raise(out.FunPriority)
		out.EmotionalTags = prependTags(out.EmotionalTags, "fun")
	case DirectiveSportier:
		out.PerformancePriority = s.raise(out.PerformancePriority)
		out.EmotionalTags = prependTags(out.EmotionalTags, "fun", "aggressive")
	case DirectiveBigger:
		out.BodyStyle = shiftBody(out.BodyStyle, 1)
	case DirectiveSmaller:
		out.BodyStyle = shiftBody(out.BodyStyle, -1)
	case DirectiveAWD:
		d := domain.DrivetrainAWD
		out.Drivetrain = &d
	case DirectiveRWD:
		d := domain.DrivetrainRWD
		out.Drivetrain = &d
	case DirectiveFWD:
		d := domain.DrivetrainFWD
		out.Drivetrain = &d
	case Directive4WD:
		d := domain.Drivetrain4WD
		out.Drivetrain = &d
	case DirectiveAnyDrivetrain:
		out.Drivetrain = nil
	default:
		return domain.PreferenceProfile{}, domain.NewConfigurationError("directive", directive, acceptedDirectives)
	}
	return out, nil
}

// resolveBudget returns the stated budget, or anchors one from the median
// average price of the current matches when none was ever stated.
func (s *Service) resolveBudget(profile domain.PreferenceProfile, matches []domain.MatchResult) int {
	if profile.BudgetMax != nil {
		return *profile.BudgetMax
	}
	var prices []float64
	for _, m := range matches {
		if m.Profile != nil && m.Profile.AvgPrice != nil {
			prices = append(prices, *m.Profile.AvgPrice)
		}
	}
	if len(prices) == 0 {
		return 0
	}
	sort.Float64s(prices)
	n := len(prices)
	med := prices[n/2]
	if n%2 == 0 {
		med = (prices[n/2-1] + prices[n/2]) / 2
	}
	return int(math.Round(med))
}

// raise nudges a priority up by the configured step, clamped to 1. An unset
// priority starts from the neutral baseline.
func (s *Service) raise(priority *float64) *float64 {
	current := domain.NeutralPriority
	if priority != nil {
		current = *priority
	}
	next := current + s.PriorityStep
	if next > 1 {
		next = 1
	}
	return &next
}

// prependTags puts the given tags at the front of the list (they carry the
// most emphasis) unless already present.
func prependTags(tags []string, add ...string) []string {
	present := make(map[string]bool, len(tags))
	for _, t := range tags {
		present[strings.ToLower(t)] = true
	}
	var missing []string
	for _, t := range add {
		if !present[strings.ToLower(t)] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return tags
	}
	return append(missing, tags...)
}

// shiftBody moves the body style one rung up or down the size ladder. Styles
// off the ladder (convertible, hatchback) and ladder ends are left unchanged;
// an unset body style stays unset, there is nothing to size relative to.
func shiftBody(body *string, dir int) *string {
	if body == nil {
		return nil
	}
	current := strings.ToLower(*body)
	for i, style := range bodySizeLadder {
		if style != current {
			continue
		}
		j := i + dir
		if j < 0 || j >= len(bodySizeLadder) {
			return body
		}
		next := bodySizeLadder[j]
		return &next
	}
	return body
}
