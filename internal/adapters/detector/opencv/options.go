package opencv

const defaultMinScore = 0.5

// Option configures a Detector.
type Option func(*Detector)

// WithMinScore drops faces detected below score.
func WithMinScore(score float64) Option {
	return func(d *Detector) {
		if score > 0 && score <= 1 {
			d.minScore = score
		}
	}
}
