package inbody

import (
	"math"
	"regexp"
	"strconv"
)

// Rules are ordered most-specific-first: labelled forms win over bare
// numbers sitting next to a keyword. The first rule whose capture parses
// to a finite float takes the metric; a parse failure counts as a
// non-match and the next rule gets its shot.
var (
	weightRules = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*weight\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)\s*kg`),
		regexp.MustCompile(`(?i)body\s*weight\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)\bweight\b\D{0,10}(-?\d+(?:[.,]\d+)?)`),
	}
	muscleRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)skeletal\s*muscle\s*mass\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)\s*kg`),
		regexp.MustCompile(`(?i)skeletal\s*muscle\s*mass\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)\bSMM\b\D{0,10}(-?\d+(?:[.,]\d+)?)`),
	}
	fatRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)percent\s*body\s*fat\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)\s*%?`),
		regexp.MustCompile(`(?i)body\s*fat\s*(?:percentage|percent)?\s*[:=]?\s*(-?\d+(?:[.,]\d+)?)\s*%`),
		regexp.MustCompile(`(?i)\bPBF\b\D{0,10}(-?\d+(?:[.,]\d+)?)`),
	}
)

// FieldExtractor pulls the three tracked metrics out of recognized text.
// Pure function of its input: identical text always yields identical
// values and confidence.
type FieldExtractor struct{}

func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{}
}

func (e *FieldExtractor) Extract(rawText string) ExtractionResult {
	result := ExtractionResult{RawText: rawText}

	found := 0
	if v := firstMatch(weightRules, rawText); v != nil {
		result.WeightKg = v
		found++
	}
	if v := firstMatch(muscleRules, rawText); v != nil {
		result.SkeletalMuscleKg = v
		found++
	}
	if v := firstMatch(fatRules, rawText); v != nil {
		result.BodyFatPercent = v
		found++
	}

	result.Confidence = float64(found) / 3
	return result
}

func firstMatch(rules []*regexp.Regexp, text string) *float64 {
	for _, rule := range rules {
		match := rule.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		// some sheets use a decimal comma
		captured := match[1]
		for i := 0; i < len(captured); i++ {
			if captured[i] == ',' {
				captured = captured[:i] + "." + captured[i+1:]
				break
			}
		}
		value, err := strconv.ParseFloat(captured, 64)
		if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
			continue
		}
		return &value
	}
	return nil
}
