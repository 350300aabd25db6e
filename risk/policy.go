package risk

// Policy holds the sizing limits and trade filters applied by the decision
// loop.
type Policy struct {
	// Kelly sizing
	KellyFraction float64 // 0.25
	MaxPosition   float64 // 0.05

	// Trade validator
	MaxPositionFrac float64 // 0.2

	// Correlation guard
	MaxCorrelatedExposure float64 // 0.08

	// Circuit breaker
	MaxDailyLossPct float64 // 0.05
}

func DefaultPolicy() Policy {
	return Policy{
		KellyFraction:         0.25,
		MaxPosition:           0.05,
		MaxPositionFrac:       0.2,
		MaxCorrelatedExposure: 0.08,
		MaxDailyLossPct:       0.05,
	}
}

// Sizer returns the Kelly sizer for this policy.
func (p Policy) Sizer() KellySizer {
	return KellySizer{KellyFraction: p.KellyFraction, MaxPosition: p.MaxPosition}
}

func (p Policy) Validator() Validator {
	return Validator{MaxPositionFrac: p.MaxPositionFrac}
}

func (p Policy) CorrelationGuard() CorrelationGuard {
	return CorrelationGuard{MaxCorrelatedExposure: p.MaxCorrelatedExposure}
}
