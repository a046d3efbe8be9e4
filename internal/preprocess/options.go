package preprocess

// Options tunes the normalization pipeline and the quality hints computed afterwards.
type Options struct {
	// Linear contrast gain applied after histogram normalization.
	Gain float64
	// Share of pixels (percent, per tail) ignored when stretching the histogram.
	ClipPercent float64
	// Gaussian sigma used by the sharpen step.
	SharpenSigma float64
	// Honor EXIF orientation so phone captures are upright before OCR.
	AutoOrient bool

	// Quality thresholds
	BlurThreshold   float64
	DarkThreshold   float64
	BrightThreshold float64
}

// DefaultOptions returns the settings used for ingredient labels.
func DefaultOptions() Options {
	return Options{
		Gain:            1.1,
		ClipPercent:     0.5,
		SharpenSigma:    1.0,
		AutoOrient:      true,
		BlurThreshold:   300.0,
		DarkThreshold:   80,
		BrightThreshold: 220,
	}
}

// WithGain overrides the contrast gain.
func (o Options) WithGain(gain float64) Options {
	o.Gain = gain
	return o
}

// WithSharpen overrides the sharpen sigma. Zero disables sharpening.
func (o Options) WithSharpen(sigma float64) Options {
	o.SharpenSigma = sigma
	return o
}

// WithThresholds sets custom quality thresholds
func (o Options) WithThresholds(blur, dark, bright float64) Options {
	o.BlurThreshold = blur
	o.DarkThreshold = dark
	o.BrightThreshold = bright
	return o
}

func (o Options) sanitized() Options {
	d := DefaultOptions()
	if o.Gain <= 0 {
		o.Gain = d.Gain
	}
	if o.ClipPercent < 0 || o.ClipPercent >= 50 {
		o.ClipPercent = d.ClipPercent
	}
	if o.SharpenSigma < 0 {
		o.SharpenSigma = 0
	}
	return o
}
