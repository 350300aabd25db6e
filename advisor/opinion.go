package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoOpinion means an advisor produced nothing usable this cycle.
var ErrNoOpinion = errors.New("advisor: no opinion")

// maxScan bounds the heuristic object extraction in ParseResponse.
const maxScan = 64 << 10

// Default values for fields an advisor leaves out.
const (
	DefaultSentiment  = 0.0
	DefaultConfidence = 0.5
	DefaultRiskLevel  = "medium"
)

// Response is what an advisor returns for one feature snapshot. Sentiment
// and Confidence are validated numbers but not yet clamped.
type Response struct {
	Sentiment  float64
	Confidence float64
	RiskLevel  string
	Notes      string
	Raw        map[string]any
}

// Opinion is a clamped Response attributed to one advisor for one cycle.
type Opinion struct {
	AdvisorID  string
	Role       string
	Sentiment  float64 // [-1, 1]
	Confidence float64 // [0, 1]
	RiskLevel  string
	Asset      string
	Raw        map[string]any
}

// NewOpinion clamps r into an Opinion.
func NewOpinion(id, role, asset string, r Response) Opinion {
	risk := r.RiskLevel
	if risk == "" {
		risk = DefaultRiskLevel
	}
	return Opinion{
		AdvisorID:  id,
		Role:       role,
		Sentiment:  clamp(r.Sentiment, -1, 1),
		Confidence: clamp(r.Confidence, 0, 1),
		RiskLevel:  risk,
		Asset:      asset,
		Raw:        r.Raw,
	}
}

// ParseResponse turns free text from an advisor into a Response.
//
// It first tries the whole text as a JSON object, then the span between the
// first '{' and the last '}' (within the first 64KiB). If neither parses it
// returns ErrNoOpinion. Non-numeric sentiment or confidence values are an
// error rather than a silent zero.
func ParseResponse(text string) (Response, error) {
	obj, err := decodeObject(text)
	if err != nil {
		scan := text
		if len(scan) > maxScan {
			scan = scan[:maxScan]
		}
		start := strings.Index(scan, "{")
		end := strings.LastIndex(scan, "}")
		if start == -1 || end <= start {
			return Response{}, ErrNoOpinion
		}
		obj, err = decodeObject(scan[start : end+1])
		if err != nil {
			return Response{}, ErrNoOpinion
		}
	}
	return ResponseFromMap(obj)
}

// ResponseFromMap validates a loosely typed payload.
func ResponseFromMap(m map[string]any) (Response, error) {
	r := Response{
		Sentiment:  DefaultSentiment,
		Confidence: DefaultConfidence,
		RiskLevel:  DefaultRiskLevel,
		Raw:        m,
	}

	if v, ok := m["sentiment"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return Response{}, fmt.Errorf("sentiment: %w", err)
		}
		r.Sentiment = f
	}
	if v, ok := m["confidence"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return Response{}, fmt.Errorf("confidence: %w", err)
		}
		r.Confidence = f
	}
	if v, ok := m["risk_level"]; ok && v != nil {
		r.RiskLevel = fmt.Sprint(v)
	}
	if v, ok := m["notes"]; ok && v != nil {
		r.Notes = fmt.Sprint(v)
	}
	return r, nil
}

func decodeObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoOpinion
	}
	return m, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, err
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		f = n
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %v", f)
	}
	return f, nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
