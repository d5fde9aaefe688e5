package dynamics

import "math"

// LimiterParams are the lookahead peak limiter's tunables (spec §4.4).
type LimiterParams struct {
	Threshold float64 // (eps, 1]
	AttackMs  float64 // >= 0
	HoldMs    float64 // >= 0
	ReleaseMs float64 // >= 0
}

// DefaultLimiterParams matches spec §4.4's documented defaults.
func DefaultLimiterParams() LimiterParams {
	return LimiterParams{Threshold: 1.0, AttackMs: 5, HoldMs: 15, ReleaseMs: 40}
}

// PerfectLimiter is a lookahead peak limiter: a peak-hold of window
// attack+hold, an exponential release, and a 3-stage box-stack smoother,
// grounded on original_source/src_backend/backend/limiter.rs's
// PerfectLimiter (the sliding-window maximum is reimplemented here with a
// monotonic deque rather than the original's three-region ring buffer —
// see DESIGN.md for why).
type PerfectLimiter struct {
	sr     uint32
	params LimiterParams
	attack int

	peakHold *slidingMax
	release  *exponentialRelease
	smoother *boxStackFilter

	delay []float32
	iDel  int
}

// NewPerfectLimiter builds a limiter for the given sample rate and params.
func NewPerfectLimiter(sr uint32, p LimiterParams) *PerfectLimiter {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLimiterParams().Threshold
	}
	msToSamples := func(ms float64) int {
		return int(math.Round(ms * float64(sr) / 1000))
	}
	attack := msToSamples(p.AttackMs)
	hold := msToSamples(p.HoldMs)
	releaseSamples := ms2samplesF(p.ReleaseMs, sr)

	l := &PerfectLimiter{
		sr:       sr,
		params:   p,
		attack:   attack,
		peakHold: newSlidingMax(attack + hold),
		release:  newExponentialRelease(releaseSamples),
		smoother: newBoxStackFilter(attack, 3),
		delay:    make([]float32, maxInt(attack, 1)),
	}
	return l
}

func ms2samplesF(ms float64, sr uint32) float64 {
	return ms * float64(sr) / 1000
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Reset clears all internal state, returning the limiter to its initial
// condition (gain 1, zeroed delay line).
func (l *PerfectLimiter) Reset() {
	l.peakHold.reset()
	l.release.reset()
	l.smoother.reset(1)
	for i := range l.delay {
		l.delay[i] = 0
	}
	l.iDel = 0
}

// ProcessInplace applies the limiter to wav (a single channel), returning
// the per-sample gain sequence. Matches spec §4.4's contract: output
// y_t = clamp(x_{t-attack} * g_t, -1, 1), g_t in [0,1], g_t never > 1.
func (l *PerfectLimiter) ProcessInplace(wav []float32) []float32 {
	l.Reset()
	n := len(wav)
	gains := make([]float32, n)
	delayLen := len(l.delay)
	for i := 0; i < n+delayLen; i++ {
		var input float32
		if i < n {
			input = wav[i]
		}
		delayed := l.delay[l.iDel]
		gain := l.calcGain(float64(input))
		l.delay[l.iDel] = input
		l.iDel = (l.iDel + 1) % delayLen
		out := float32(float64(delayed) * gain)
		if out > 1 {
			out = 1
		} else if out < -1 {
			out = -1
		}
		if i >= delayLen {
			j := i - delayLen
			wav[j] = out
			gains[j] = float32(gain)
		}
	}
	return gains
}

func (l *PerfectLimiter) calcGain(value float64) float64 {
	vAbs := math.Abs(value)
	rawGain := 1.0
	if vAbs > l.params.Threshold {
		rawGain = l.params.Threshold / (vAbs + 1e-300)
	}
	held := l.peakHold.step(rawGain)
	released := l.release.step(held)
	return l.smoother.step(released)
}

// slidingMax computes, at each step, the minimum (not maximum — the
// limiter tracks the tightest upcoming gain) of the last window values
// including the current one, using the classic monotonic-deque sliding
// window algorithm (O(1) amortized). Framed as a "hold" of the minimum
// gain looking forward by holding the smallest value seen in the trailing
// window, which is equivalent to spec §4.4's peak-hold of the reduction
// needed at the attack boundary.
type slidingMax struct {
	window int
	buf    []float64
	idx    []int
	head   int
	tail   int
	t      int
}

func newSlidingMax(window int) *slidingMax {
	if window < 1 {
		window = 1
	}
	return &slidingMax{
		window: window,
		buf:    make([]float64, window+1),
		idx:    make([]int, window+1),
	}
}

func (s *slidingMax) reset() {
	s.head, s.tail, s.t = 0, 0, 0
}

// step pushes a new raw gain value and returns the minimum gain over the
// trailing window ending at the current sample (inclusive).
func (s *slidingMax) step(value float64) float64 {
	bufLen := len(s.buf)
	for s.head != s.tail && s.buf[(s.tail-1+bufLen)%bufLen] >= value {
		s.tail = (s.tail - 1 + bufLen) % bufLen
	}
	s.buf[s.tail] = value
	s.idx[s.tail] = s.t
	s.tail = (s.tail + 1) % bufLen
	for s.idx[s.head] <= s.t-s.window {
		s.head = (s.head + 1) % bufLen
	}
	s.t++
	return s.buf[s.head]
}

// exponentialRelease smooths upward (gain recovering toward 1) with time
// constant releaseSamples, matching original_source's ExponentialRelease.
type exponentialRelease struct {
	releaseSamples float64
	slew           float64
	output         float64
}

func newExponentialRelease(releaseSamples float64) *exponentialRelease {
	r := &exponentialRelease{releaseSamples: releaseSamples}
	r.reset()
	return r
}

func (r *exponentialRelease) reset() {
	r.slew = 1 / (r.releaseSamples + 1)
	r.output = 1
}

func (r *exponentialRelease) step(input float64) float64 {
	out := math.Min(input, r.output+(input-r.output)*r.slew)
	r.output = out
	return out
}

// boxStackFilter is a cascade of nLayers box (moving average) filters
// whose combined length approximates `length`, smoothing the gain curve
// over the attack window (spec §4.4: "box-stack smoothing filter of
// length attack, 3 stacked box filters with heuristic ratios").
type boxStackFilter struct {
	layers []*boxFilter
}

func newBoxStackFilter(length, nLayers int) *boxStackFilter {
	if nLayers < 1 {
		nLayers = 1
	}
	// Heuristic split matching signalsmith-audio's box-stack approach:
	// distribute length roughly evenly, biasing the first layer slightly
	// larger so the cascade's combined impulse response approximates a
	// Gaussian without the cost of many layers.
	base := length / nLayers
	rem := length % nLayers
	layers := make([]*boxFilter, nLayers)
	for i := 0; i < nLayers; i++ {
		l := base
		if i < rem {
			l++
		}
		if l < 1 {
			l = 1
		}
		layers[i] = newBoxFilter(l)
	}
	return &boxStackFilter{layers: layers}
}

func (b *boxStackFilter) reset(value float64) {
	for _, l := range b.layers {
		l.reset(value)
	}
}

func (b *boxStackFilter) step(input float64) float64 {
	v := input
	for _, l := range b.layers {
		v = l.step(v)
	}
	return v
}

// boxFilter is a single moving-average (box) filter of fixed length,
// implemented as a running-sum ring buffer.
type boxFilter struct {
	buf []float64
	i   int
	sum float64
}

func newBoxFilter(length int) *boxFilter {
	if length < 1 {
		length = 1
	}
	return &boxFilter{buf: make([]float64, length)}
}

func (b *boxFilter) reset(value float64) {
	for i := range b.buf {
		b.buf[i] = value
	}
	b.sum = value * float64(len(b.buf))
	b.i = 0
}

func (b *boxFilter) step(input float64) float64 {
	b.sum += input - b.buf[b.i]
	b.buf[b.i] = input
	b.i = (b.i + 1) % len(b.buf)
	return b.sum / float64(len(b.buf))
}
