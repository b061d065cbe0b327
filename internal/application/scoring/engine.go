package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"carmatch-backend/internal/domain"
)

// Factor names shared between scoring and explanation generation.
const (
	FactorPrice       = "price"
	FactorPerformance = "performance"
	FactorDrivetrain  = "drivetrain"
	FactorBody        = "body_style"
	FactorReliability = "reliability"
	FactorEmotional   = "emotional"
)

// Thresholds for explanation generation: sub-scores at or above strong
// produce a reason, sub-scores at or below weak on a stated concern produce
// a tradeoff.
const (
	strongThreshold = 80.0
	weakThreshold   = 40.0
	maxReasons      = 2
)

// Engine computes match scores between preference profiles and catalog
// records. Scoring is deterministic and explainable: every number in the
// final score traces back to a stated weight.
type Engine struct {
	// Workers bounds the goroutines used for a full-catalog sweep.
	Workers int
}

// Score computes the match between one record and one profile. The profile
// aggregate may be nil (record with no listings); the record is then scored
// on static attributes with a widened price band. Pure function: no I/O, no
// shared state.
func (e *Engine) Score(profile domain.PreferenceProfile, record domain.CarRecord, agg *domain.CarProfile) domain.MatchResult {
	factors := []domain.FactorScore{
		e.scorePrice(profile, agg),
		e.scorePerformance(profile, record),
		e.scoreDrivetrain(profile, record),
		e.scoreBody(profile, record),
		e.scoreReliability(profile, record),
		e.scoreEmotional(profile, record),
	}

	// Weighted average, not raw sum: the score stays in [0,100] no matter
	// how many dials are active.
	var weightedSum, totalWeight float64
	for _, f := range factors {
		weightedSum += f.Score * f.Weight
		totalWeight += f.Weight
	}
	score := 50.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}
	score = math.Round(score*10) / 10

	reasons, tradeoffs := e.explain(profile, record, agg, factors)

	return domain.MatchResult{
		Record:    record,
		Profile:   agg,
		Score:     score,
		Reasons:   reasons,
		Tradeoffs: tradeoffs,
		Factors:   factors,
	}
}

func (e *Engine) scorePrice(profile domain.PreferenceProfile, agg *domain.CarProfile) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorPrice, Weight: profile.Economy(), Stated: profile.BudgetMax != nil}
	if profile.BudgetMax == nil {
		// No budget stated: neutral, no penalty and no bonus.
		f.Score = 70
		return f
	}
	band := 0.30
	if agg == nil || agg.AvgPrice == nil || agg.Unreliable {
		// Thin or missing market data: widen the decay band so rare cars
		// are not unfairly punished for an uncertain average.
		band = 0.50
	}
	if agg == nil || agg.AvgPrice == nil {
		f.Score = 70
		return f
	}
	budget := float64(*profile.BudgetMax)
	avg := *agg.AvgPrice
	if avg <= budget {
		f.Score = 100
		return f
	}
	over := (avg - budget) / budget
	f.Score = clamp(100 * (1 - over/band))
	return f
}

func (e *Engine) scorePerformance(profile domain.PreferenceProfile, record domain.CarRecord) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorPerformance, Weight: profile.Performance(), Stated: profile.PerformancePriority != nil}
	p := profile.Performance()
	// The priority implies a performance target; distance from the target is
	// penalized symmetrically. A car wildly quicker than asked for is a worse
	// fit, not a better one.
	targetHP := 150 + 250*p
	targetZeroSixty := 9.0 - 5.0*p

	hpScore := 100.0
	if record.PowerHP > 0 {
		dev := math.Abs(float64(record.PowerHP)-targetHP) / targetHP
		hpScore = clamp(100 * (1 - dev/0.75))
	}
	zsScore := 100.0
	if record.ZeroToSixty > 0 {
		dev := math.Abs(record.ZeroToSixty-targetZeroSixty) / targetZeroSixty
		zsScore = clamp(100 * (1 - dev/0.75))
	}
	f.Score = (hpScore + zsScore) / 2
	return f
}

func (e *Engine) scoreDrivetrain(profile domain.PreferenceProfile, record domain.CarRecord) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorDrivetrain, Stated: profile.Drivetrain != nil}
	if profile.Drivetrain == nil {
		// Categorical preferences are either a hard concern or irrelevant.
		f.Score = 100
		f.Weight = 0
		return f
	}
	f.Weight = 1.0
	want, got := *profile.Drivetrain, record.Drivetrain
	switch {
	case want == got:
		f.Score = 100
	case want == domain.DrivetrainAWD && got == domain.Drivetrain4WD:
		// Both send power to all four wheels.
		f.Score = 70
	case want == domain.DrivetrainAWD:
		f.Score = 40
	default:
		f.Score = 60
	}
	return f
}

// bodyGroups are body styles close enough to be a reasonable substitute.
var bodyGroups = [][]string{
	{"sedan", "liftback", "wagon"},
	{"coupe", "convertible"},
	{"hatchback", "liftback", "hot-hatch"},
	{"suv", "crossover"},
	{"suv", "truck"},
}

// farBodyPairs are categorically different vehicles.
var farBodyPairs = map[string]string{
	"sedan": "truck", "coupe": "truck", "hatchback": "truck", "convertible": "truck",
}

func (e *Engine) scoreBody(profile domain.PreferenceProfile, record domain.CarRecord) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorBody, Stated: profile.BodyStyle != nil}
	if profile.BodyStyle == nil {
		f.Score = 100
		f.Weight = 0
		return f
	}
	f.Weight = 1.0
	want := strings.ToLower(*profile.BodyStyle)
	got := strings.ToLower(record.BodyType)
	if want == got {
		f.Score = 100
		return f
	}
	for _, group := range bodyGroups {
		if containsString(group, want) && containsString(group, got) {
			f.Score = 80
			return f
		}
	}
	if farBodyPairs[want] == got || farBodyPairs[got] == want {
		f.Score = 30
		return f
	}
	f.Score = 50
	return f
}

func (e *Engine) scoreReliability(profile domain.PreferenceProfile, record domain.CarRecord) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorReliability, Weight: profile.Reliability(), Stated: profile.ReliabilityPriority != nil}
	// A user who didn't ask for reliability is barely penalized for a low
	// score; the penalty scales with how much they care.
	f.Score = clamp(100 - (100-10*record.ReliabilityScore)*profile.Reliability())
	return f
}

func (e *Engine) scoreEmotional(profile domain.PreferenceProfile, record domain.CarRecord) domain.FactorScore {
	f := domain.FactorScore{Factor: FactorEmotional, Weight: profile.Fun(), Stated: len(profile.EmotionalTags) > 0}
	if len(profile.EmotionalTags) == 0 {
		f.Score = 70
		return f
	}
	// "Fun" may live in either tag set, so match against the union.
	carTags := make(map[string]bool)
	for _, t := range record.EmotionalTags.Values() {
		carTags[strings.ToLower(t)] = true
	}
	for _, t := range record.DrivingFeelTags.Values() {
		carTags[strings.ToLower(t)] = true
	}
	matched := 0
	for _, want := range profile.EmotionalTags {
		if carTags[strings.ToLower(want)] {
			matched++
		}
	}
	f.Score = 100 * float64(matched) / float64(len(profile.EmotionalTags))
	return f
}

// explain derives reasons and tradeoffs from the same factor scores used for
// ranking: at most two reasons (strongest first), all tradeoffs on stated
// concerns (weakest first).
func (e *Engine) explain(profile domain.PreferenceProfile, record domain.CarRecord, agg *domain.CarProfile, factors []domain.FactorScore) ([]string, []string) {
	strong := make([]domain.FactorScore, 0, len(factors))
	weak := make([]domain.FactorScore, 0, len(factors))
	for _, f := range factors {
		if f.Score >= strongThreshold && f.Weight > 0 {
			strong = append(strong, f)
		}
		if f.Score <= weakThreshold && f.Stated {
			weak = append(weak, f)
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].Score > strong[j].Score })
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Score < weak[j].Score })

	reasons := make([]string, 0, maxReasons)
	for _, f := range strong {
		if text := e.reasonText(f, profile, record, agg); text != "" {
			reasons = append(reasons, text)
			if len(reasons) == maxReasons {
				break
			}
		}
	}
	tradeoffs := make([]string, 0, len(weak))
	for _, f := range weak {
		if text := e.tradeoffText(f, profile, record, agg); text != "" {
			tradeoffs = append(tradeoffs, text)
		}
	}
	return reasons, tradeoffs
}

func (e *Engine) reasonText(f domain.FactorScore, profile domain.PreferenceProfile, record domain.CarRecord, agg *domain.CarProfile) string {
	switch f.Factor {
	case FactorPrice:
		if profile.BudgetMax == nil || agg == nil || agg.AvgPrice == nil {
			return ""
		}
		return fmt.Sprintf("Fits your $%d budget at ~$%.0f on average", *profile.BudgetMax, *agg.AvgPrice)
	case FactorPerformance:
		return fmt.Sprintf("%dhp and 0-60 in %.1fs match the pace you asked for", record.PowerHP, record.ZeroToSixty)
	case FactorDrivetrain:
		return fmt.Sprintf("%s as requested", record.Drivetrain)
	case FactorBody:
		return fmt.Sprintf("%s body style as requested", record.BodyType)
	case FactorReliability:
		return fmt.Sprintf("Strong reliability record (%.1f/10)", record.ReliabilityScore)
	case FactorEmotional:
		matched := matchedTags(profile, record)
		if len(matched) == 0 {
			return ""
		}
		return fmt.Sprintf("Matches your vibe: %s", strings.Join(matched, ", "))
	}
	return ""
}

func (e *Engine) tradeoffText(f domain.FactorScore, profile domain.PreferenceProfile, record domain.CarRecord, agg *domain.CarProfile) string {
	switch f.Factor {
	case FactorPrice:
		if agg != nil && agg.AvgPrice != nil {
			return fmt.Sprintf("Well over budget at ~$%.0f on average", *agg.AvgPrice)
		}
		return "Likely over budget"
	case FactorPerformance:
		return fmt.Sprintf("Not the pace you asked for (0-60 in %.1fs)", record.ZeroToSixty)
	case FactorDrivetrain:
		return fmt.Sprintf("Only available in %s", record.Drivetrain)
	case FactorBody:
		if profile.BodyStyle != nil {
			return fmt.Sprintf("%s instead of %s", record.BodyType, *profile.BodyStyle)
		}
	case FactorReliability:
		return fmt.Sprintf("Reliability could be a concern (%.1f/10)", record.ReliabilityScore)
	case FactorEmotional:
		return "Doesn't really match the vibe you're after"
	}
	return ""
}

func matchedTags(profile domain.PreferenceProfile, record domain.CarRecord) []string {
	carTags := make(map[string]bool)
	for _, t := range record.EmotionalTags.Values() {
		carTags[strings.ToLower(t)] = true
	}
	for _, t := range record.DrivingFeelTags.Values() {
		carTags[strings.ToLower(t)] = true
	}
	var matched []string
	for _, want := range profile.EmotionalTags {
		if carTags[strings.ToLower(want)] {
			matched = append(matched, want)
		}
	}
	if len(matched) > 3 {
		matched = matched[:3]
	}
	return matched
}

// Rank scores every record against the profile across a bounded worker pool
// and returns results ordered best-first. Records and aggregates are read
// only; results land in pre-assigned slots, so workers share no mutable
// state. Cancelling the context abandons the sweep with no side effects.
func (e *Engine) Rank(ctx context.Context, profile domain.PreferenceProfile, records []domain.CarRecord, snapshot func(uint) *domain.CarProfile) ([]domain.MatchResult, error) {
	results := make([]domain.MatchResult, len(records))
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) && len(records) > 0 {
		workers = len(records)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.Score(profile, records[i], snapshot(records[i].ID))
			}
		}()
	}
feed:
	for i := range records {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// More market evidence wins, then alphabetical for determinism.
		ci, cj := listingCount(results[i].Profile), listingCount(results[j].Profile)
		if ci != cj {
			return ci > cj
		}
		if results[i].Record.Make != results[j].Record.Make {
			return results[i].Record.Make < results[j].Record.Make
		}
		return results[i].Record.Model < results[j].Record.Model
	})
	return results, nil
}

func listingCount(p *domain.CarProfile) int {
	if p == nil {
		return 0
	}
	return p.CountListings
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
