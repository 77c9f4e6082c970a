package driver

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary is one row of clients_<shard>.csv.
type Summary struct {
	Index           int
	Executed        int
	TotalLatencySec float64
	// Throughput is executed records per millisecond of summed latency.
	Throughput    float64
	AvgLatencySec float64
	MedianMs      float64
	P95Ms         int64
	P99Ms         int64
}

// Percentile returns the value at rank ceil(p/100*n) of an ascending list.
func Percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// Median of an ascending list; even lengths average the two middle values.
func Median(sorted []int64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 0:
		return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
	default:
		return float64(sorted[n/2])
	}
}

func Summarize(m Measurement) Summary {
	sorted := slices.Clone(m.Latencies)
	slices.Sort(sorted)

	var totalMs int64
	for _, l := range sorted {
		totalMs += l
	}
	s := Summary{
		Index:           m.Index,
		Executed:        m.Executed,
		TotalLatencySec: float64(totalMs) / 1000,
		MedianMs:        Median(sorted),
		P95Ms:           Percentile(sorted, 95),
		P99Ms:           Percentile(sorted, 99),
	}
	if totalMs > 0 {
		s.Throughput = float64(m.Executed) / float64(totalMs)
	}
	if m.Executed > 0 {
		s.AvgLatencySec = s.TotalLatencySec / float64(m.Executed)
	}
	return s
}

func round2(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// Row formats the summary as a ", " separated line.
func (s Summary) Row() string {
	return strings.Join([]string{
		strconv.Itoa(s.Index),
		strconv.Itoa(s.Executed),
		round2(s.TotalLatencySec),
		round2(s.Throughput),
		round2(s.AvgLatencySec),
		round2(s.MedianMs),
		strconv.FormatInt(s.P95Ms, 10),
		strconv.FormatInt(s.P99Ms, 10),
	}, ", ")
}

// ThroughputSummary is the content of throughput_<shard>.csv.
type ThroughputSummary struct {
	Min float64
	Max float64
	Avg float64
}

// SummarizeThroughput aggregates worker throughput. Avg divides by the pool
// size, so workers that produced nothing pull it down.
func SummarizeThroughput(rows []Summary, poolSize int) ThroughputSummary {
	if len(rows) == 0 || poolSize <= 0 {
		return ThroughputSummary{}
	}
	t := ThroughputSummary{Min: math.MaxFloat64, Max: -math.MaxFloat64}
	var total float64
	for _, r := range rows {
		t.Min = min(t.Min, r.Throughput)
		t.Max = max(t.Max, r.Throughput)
		total += r.Throughput
	}
	t.Avg = total / float64(poolSize)
	return t
}

func (t ThroughputSummary) Row() string {
	return fmt.Sprintf("%s,%s,%s", formatDouble(t.Min), formatDouble(t.Max), formatDouble(t.Avg))
}

// formatDouble renders f the way Java's Double.toString does: shortest
// round-trip digits, at least one fractional digit, and E notation outside
// [1e-3, 1e7).
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	if a := math.Abs(f); a >= 1e-3 && a < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}
