package engine

// Config is the flat configuration consumed by one engine instance. It is
// owned by the caller and copied at construction.
type Config struct {
	InitialCash        float64
	FeeBps             float64
	CommissionPerTrade float64
	SlippageBps        float64
	Seed               int64

	VolumeRatio  float64
	MinFillRatio float64
	MaxFillRatio float64

	DeliveryTaxPct float64
	IntradayTaxPct float64

	RiskFreeRatePct float64

	// DefaultPrice is the affordability estimate used for a buy on a symbol
	// with no known price yet.
	DefaultPrice float64

	// ProgressInterval is the tick cadence of the progress callback.
	ProgressInterval int
}

func (c Config) withDefaults() Config {
	if c.InitialCash <= 0 {
		c.InitialCash = 100000
	}
	if c.DefaultPrice <= 0 {
		c.DefaultPrice = 100.0
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 1000
	}
	return c
}

func (c Config) simulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		SlippageBps:  c.SlippageBps,
		VolumeRatio:  c.VolumeRatio,
		MinFillRatio: c.MinFillRatio,
		MaxFillRatio: c.MaxFillRatio,
		Seed:         c.Seed,
	}
}

func (c Config) taxConfig() TaxConfig {
	return TaxConfig{
		DeliveryTaxPct: c.DeliveryTaxPct,
		IntradayTaxPct: c.IntradayTaxPct,
	}
}
