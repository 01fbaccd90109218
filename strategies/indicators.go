package strategies

// EMA is a streaming exponential moving average. Primed after `period`
// samples; before that Value returns the running seed.
type EMA struct {
	period int
	alpha  float64
	value  float64
	count  int
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
	}
}

func (e *EMA) Update(v float64) float64 {
	if e.count == 0 {
		e.value = v
	} else {
		e.value = e.alpha*v + (1-e.alpha)*e.value
	}
	e.count++
	return e.value
}

func (e *EMA) Value() float64 { return e.value }

// Primed reports whether enough samples have been seen for the average to be
// meaningful.
func (e *EMA) Primed() bool { return e.count >= e.period }

// SMASeries computes a simple moving average over the whole series; entries
// before the warmup are zero.
func SMASeries(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) < period || period <= 0 {
		return result
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}
	return result
}
