package domain

// NeutralPriority is the baseline weight for any priority the user did not
// mention: unstated concerns still weakly influence the score instead of
// vanishing entirely.
const NeutralPriority = 0.3

// PreferenceProfile is the validated, structured representation of what the
// user wants. It arrives from the external intent extractor and is only ever
// mutated by the refinement resolver.
type PreferenceProfile struct {
	BudgetMax           *int        `json:"budget_max"`
	PerformancePriority *float64    `json:"performance_priority"`
	ReliabilityPriority *float64    `json:"reliability_priority"`
	EconomyPriority     *float64    `json:"economy_priority"`
	FunPriority         *float64    `json:"fun_priority"`
	Drivetrain          *Drivetrain `json:"drivetrain"`
	BodyStyle           *string     `json:"body_style"`
	// EmotionalTags is ordered: earlier tags carry more emphasis in the UI.
	EmotionalTags []string `json:"emotional_tags"`
	ReferenceCar  *string  `json:"reference_car"`
	UsageContext  *string  `json:"usage_context"`
}

// Validate rejects malformed profile shapes: out-of-range priorities,
// non-positive budgets, unknown enum values. Values are never coerced.
func (p *PreferenceProfile) Validate() error {
	if p.BudgetMax != nil && *p.BudgetMax <= 0 {
		return NewValidationError("budget_max", "must be a positive amount")
	}
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"performance_priority", p.PerformancePriority},
		{"reliability_priority", p.ReliabilityPriority},
		{"economy_priority", p.EconomyPriority},
		{"fun_priority", p.FunPriority},
	} {
		if f.value != nil && (*f.value < 0 || *f.value > 1) {
			return NewValidationError(f.name, "must be between 0 and 1")
		}
	}
	if p.Drivetrain != nil {
		if _, err := ParseDrivetrain(string(*p.Drivetrain)); err != nil {
			return err
		}
	}
	if p.UsageContext != nil {
		switch *p.UsageContext {
		case "daily", "track", "winter", "road-trip":
		default:
			return NewConfigurationError("usage_context", *p.UsageContext, []string{"daily", "track", "winter", "road-trip"})
		}
	}
	return nil
}

// Clone returns a deep copy so refinement transforms never alias the input.
func (p PreferenceProfile) Clone() PreferenceProfile {
	out := p
	out.BudgetMax = copyInt(p.BudgetMax)
	out.PerformancePriority = copyFloat(p.PerformancePriority)
	out.ReliabilityPriority = copyFloat(p.ReliabilityPriority)
	out.EconomyPriority = copyFloat(p.EconomyPriority)
	out.FunPriority = copyFloat(p.FunPriority)
	if p.Drivetrain != nil {
		d := *p.Drivetrain
		out.Drivetrain = &d
	}
	out.BodyStyle = copyString(p.BodyStyle)
	out.ReferenceCar = copyString(p.ReferenceCar)
	out.UsageContext = copyString(p.UsageContext)
	out.EmotionalTags = append([]string(nil), p.EmotionalTags...)
	return out
}

// Performance returns the performance dial, defaulting to the neutral baseline.
func (p PreferenceProfile) Performance() float64 { return orNeutral(p.PerformancePriority) }

// Reliability returns the reliability dial, defaulting to the neutral baseline.
func (p PreferenceProfile) Reliability() float64 { return orNeutral(p.ReliabilityPriority) }

// Economy returns the economy dial, defaulting to the neutral baseline.
func (p PreferenceProfile) Economy() float64 { return orNeutral(p.EconomyPriority) }

// Fun returns the fun dial, defaulting to the neutral baseline.
func (p PreferenceProfile) Fun() float64 { return orNeutral(p.FunPriority) }

func orNeutral(v *float64) float64 {
	if v == nil {
		return NeutralPriority
	}
	return *v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
