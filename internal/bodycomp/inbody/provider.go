package inbody

import "context"

// ExtractionResult carries whatever could be read off an InBody result
// sheet. Metrics that could not be parsed stay nil and the client asks
// the user to fill them in manually.
type ExtractionResult struct {
	WeightKg         *float64 `json:"weightKg"`
	SkeletalMuscleKg *float64 `json:"skeletalMuscleKg"`
	BodyFatPercent   *float64 `json:"bodyFatPercent"`
	// Confidence is the fraction of the three tracked metrics found,
	// one of 0, 1/3, 2/3, 1.
	Confidence float64 `json:"confidence"`
	RawText    string  `json:"rawText"`
}

// OCRProvider recognizes an InBody sheet from a file on disk. A failing
// recognition engine is not an error: the provider returns a zero-value
// result (confidence 0) and the caller falls back to manual entry.
// Exactly one provider is active, injected at composition time.
type OCRProvider interface {
	ExtractInBodyData(ctx context.Context, path string) ExtractionResult
}
