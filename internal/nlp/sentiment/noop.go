package sentiment

// NoopClassifier is the degraded-mode Classifier used when no sentiment
// model is configured, mirroring the diarization pipeline's degraded
// startup: every call reports neutral rather than blocking the pipeline
// on an absent model.
type NoopClassifier struct{}

func (NoopClassifier) Classify(string) (string, float64) { return "neutral", 0 }
func (NoopClassifier) IsReady() bool                     { return false }
