package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio lets num out of every den events through.
type ratio struct {
	num, den uint64
}

// ratioSampler is safe for concurrent use. A nil ratio lets everything through.
type ratioSampler struct {
	ratio atomic.Pointer[ratio]
	seen  atomic.Uint64
}

func newRatioSampler(numerator, denominator int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio and restarts the cycle. Non-positive values disable sampling.
func (s *ratioSampler) Set(numerator, denominator int) {
	s.seen.Store(0)
	if numerator <= 0 || denominator <= 0 || numerator >= denominator {
		s.ratio.Store(nil)
		return
	}
	s.ratio.Store(&ratio{num: uint64(numerator), den: uint64(denominator)})
}

// Allow admits the first num events of each window of den.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == nil {
		return true
	}
	return (s.seen.Add(1)-1)%r.den < r.num
}

// parseRatioSpec reads "1/10", "10" (one in ten) or "5%". "off" and "all"
// both return 0, 0, which keeps every debug line.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "", "off", "all":
		return 0, 0
	}
	if pct, ok := strings.CutSuffix(spec, "%"); ok {
		v, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil || v <= 0 || v >= 100 {
			return 0, 0
		}
		return v, 100
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	v, err := strconv.Atoi(spec)
	if err != nil || v <= 1 {
		return 0, 0
	}
	return 1, v
}
