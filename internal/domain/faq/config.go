package faq

import "math"

const (
	// DefaultThreshold is the minimum confidence for a curated answer.
	DefaultThreshold = 0.6
	// DefaultFallbackAnswer is returned when nothing clears the threshold.
	DefaultFallbackAnswer = "متوجه سؤال شما نشدم. لطفاً آن را به شکل دیگری بپرسید."
)

// MatcherConfig holds runtime knobs for the Matcher. A zero Threshold is a
// valid setting that answers every comparable message from the catalog;
// only values outside [0, 1] fall back to DefaultThreshold.
type MatcherConfig struct {
	Threshold      float64
	FallbackAnswer string
}

func (c MatcherConfig) withDefaults() MatcherConfig {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	if c.FallbackAnswer == "" {
		c.FallbackAnswer = DefaultFallbackAnswer
	}
	return c
}
