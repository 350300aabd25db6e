package regime

// DefaultMaxPosition is the cap used for labels without an override.
const DefaultMaxPosition = 0.05

// Scaled is a consensus pair carrying its regime position cap.
type Scaled struct {
	Label           Label
	Sentiment       float64
	Confidence      float64
	MaxPositionSize float64
}

// Scaler maps a regime label to a maximum position size.
type Scaler struct {
	Caps    map[Label]float64
	Default float64
}

func NewScaler(def float64, caps map[Label]float64) Scaler {
	if def <= 0 {
		def = DefaultMaxPosition
	}
	c := make(map[Label]float64, len(caps))
	for k, v := range caps {
		c[k] = v
	}
	return Scaler{Caps: c, Default: def}
}

func (s Scaler) Cap(label Label) float64 {
	if c, ok := s.Caps[label]; ok && c >= 0 {
		return c
	}
	if s.Default > 0 {
		return s.Default
	}
	return DefaultMaxPosition
}

// Scale passes sentiment and confidence through and attaches the cap.
func (s Scaler) Scale(label Label, sentiment, confidence float64) Scaled {
	return Scaled{
		Label:           label,
		Sentiment:       sentiment,
		Confidence:      confidence,
		MaxPositionSize: s.Cap(label),
	}
}
