package springseq

// Temperature settings for sequence generation.
// Low values keep command tables stable between identical requests.
const (
	// DefaultTemperature is used when no temperature is configured.
	DefaultTemperature float32 = 0.1

	// TemperatureZero provides an explicit near-zero temperature.
	// Zero itself is treated as unset by WithTemperature.
	TemperatureZero float32 = 0.0001
)
