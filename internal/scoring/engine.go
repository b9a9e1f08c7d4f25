package scoring

import (
	"math"
	"sort"
)

// SeriesScore is one scored series. Immutable once computed from a
// shot list.
type SeriesScore struct {
	SeriesNumber int `json:"seriesNumber"`
	RawTotal     int `json:"rawTotal"`
	XCount       int `json:"xCount"`
}

// HandicapConfig carries the per-calculation adjustment parameters.
// An EqualizedCount of 0 means every series counts.
type HandicapConfig struct {
	PerSeries      float64
	EqualizedCount int
}

// RawTotal sums the capped raw totals of the counted series.
func (c HandicapConfig) RawTotal(series []SeriesScore) int {
	return RawMatchTotal(series, c.EqualizedCount)
}

// AdjustedTotal sums the handicap-adjusted totals of the counted series.
func (c HandicapConfig) AdjustedTotal(series []SeriesScore) int {
	return AdjustedMatchTotal(series, c.PerSeries, c.EqualizedCount)
}

// Effective reports how much handicap was actually applied.
func (c HandicapConfig) Effective(series []SeriesScore) int {
	return EffectiveHandicap(series, c.PerSeries, c.EqualizedCount)
}

// SeriesTotal sums the parsed values of all non-blank shots and counts
// inner tens. Blank shots are pending slots, not zeros.
func SeriesTotal(shots []string) (total, xCount int, err error) {
	total, err = Sum(shots)
	if err != nil {
		return 0, 0, err
	}
	return total, CountX(shots), nil
}

// AdjustedSeries applies the per-series handicap and clamps the result
// to [0, MaxSeriesTotal]. Rounding is half-away-from-zero, and the
// clamp holds for any handicap sign or magnitude. Every client
// platform must agree with this number bit for bit.
func AdjustedSeries(rawTotal int, handicapPerSeries float64) int {
	adjusted := int(math.Round(float64(rawTotal) + handicapPerSeries))
	if adjusted < 0 {
		return 0
	}
	if adjusted > MaxSeriesTotal {
		return MaxSeriesTotal
	}
	return adjusted
}

// RawMatchTotal sums min(rawTotal, 50) over the counted series,
// ordered by series number ascending. equalizedCount > 0 limits the
// total to the earliest-numbered series.
func RawMatchTotal(series []SeriesScore, equalizedCount int) int {
	total := 0
	for _, s := range countedSeries(series, equalizedCount) {
		total += cappedRaw(s.RawTotal)
	}
	return total
}

// AdjustedMatchTotal sums the per-series clamped adjusted totals. A
// zero handicap short-circuits to the raw total so no rounding is
// involved at all.
func AdjustedMatchTotal(series []SeriesScore, handicapPerSeries float64, equalizedCount int) int {
	if handicapPerSeries == 0 {
		return RawMatchTotal(series, equalizedCount)
	}
	total := 0
	for _, s := range countedSeries(series, equalizedCount) {
		total += AdjustedSeries(cappedRaw(s.RawTotal), handicapPerSeries)
	}
	return total
}

// EffectiveHandicap reports the handicap actually applied after
// per-series clamping: the sum of (adjusted - cappedRaw). Near the
// 50-point ceiling (or the floor, for negative handicaps) this is less
// than handicapPerSeries times the series count. That under-application
// is an observable property of the clamp rule, not an accident.
func EffectiveHandicap(series []SeriesScore, handicapPerSeries float64, equalizedCount int) int {
	applied := 0
	for _, s := range countedSeries(series, equalizedCount) {
		capped := cappedRaw(s.RawTotal)
		applied += AdjustedSeries(capped, handicapPerSeries) - capped
	}
	return applied
}

// RoundToQuarter rounds to the nearest 0.25 step, halves away from
// zero. Used for handicap-index math such as provisional handicaps
// averaged over a short history.
func RoundToQuarter(v float64) float64 {
	return math.Round(v*4) / 4
}

// LegacyAdjustedMatchTotal applies the handicap to the average series
// and multiplies back up.
//
// Deprecated: this is an approximation retained for old report layouts
// only. It is not equivalent to AdjustedMatchTotal and must never be
// used for ranking.
func LegacyAdjustedMatchTotal(series []SeriesScore, handicapPerSeries float64, equalizedCount int) int {
	counted := countedSeries(series, equalizedCount)
	if len(counted) == 0 {
		return 0
	}
	raw := 0
	for _, s := range counted {
		raw += cappedRaw(s.RawTotal)
	}
	avg := float64(raw)/float64(len(counted)) + handicapPerSeries
	avg = math.Min(math.Max(avg, 0), float64(MaxSeriesTotal))
	return int(math.Round(avg * float64(len(counted))))
}

func countedSeries(series []SeriesScore, equalizedCount int) []SeriesScore {
	ordered := make([]SeriesScore, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SeriesNumber < ordered[j].SeriesNumber
	})
	if equalizedCount > 0 && equalizedCount < len(ordered) {
		ordered = ordered[:equalizedCount]
	}
	return ordered
}

func cappedRaw(raw int) int {
	if raw > MaxSeriesTotal {
		return MaxSeriesTotal
	}
	return raw
}
