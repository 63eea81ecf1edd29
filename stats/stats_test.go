package stats

import (
	"math"
	"testing"
)

func TestAverage(t *testing.T) {
	var s Average
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Count != 8 {
		t.Errorf("count %v", s.Count)
	}
	if s.Mean != 5 {
		t.Errorf("mean %v", s.Mean)
	}
	// sample stddev with n-1 denominator
	expect := math.Sqrt(32.0 / 7.0)
	if math.Abs(s.StdDev-expect) > 1e-12 {
		t.Errorf("stddev %v expect %v", s.StdDev, expect)
	}
	if got := s.String(); got != "5 +/- 2.1" {
		t.Errorf("string %q", got)
	}
	s.Reset()
	if s.Count != 0 || s.Mean != 0 || s.StdDev != 0 {
		t.Errorf("after reset: %+v", s)
	}
	s.Add(3)
	if s.Mean != 3 || s.StdDev != 0 {
		t.Errorf("single value: %+v", s)
	}
}

func TestEMA(t *testing.T) {
	var e EMA
	// zero value seeds with the first sample
	if v := e.Add(10, 4); v != 10 {
		t.Errorf("first value %v", v)
	}
	e = EMA(10)
	// k = 2/(n+1) = 0.4
	if v := e.Add(20, 4); math.Abs(v-14) > 1e-12 {
		t.Errorf("smoothed value %v expect 14", v)
	}
	e = EMA(14)
	if v := e.Add(20, 4); math.Abs(v-16.4) > 1e-12 {
		t.Errorf("smoothed value %v expect 16.4", v)
	}
}
