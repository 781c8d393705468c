package domain

import "sort"

// Candle represents a single OHLCV bar. Time is the bar's open time in Unix
// seconds and is unique within any stored sequence for one
// (instrument, timeframe) pair.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// CacheEntry is the stored value of the local candle store for one
// (instrument, timeframe) key. FromTime/ToTime are watermarks of everything
// ever fetched for the key; they only widen across writes and may exceed the
// extents of Data after partial merges.
type CacheEntry struct {
	Data     []Candle `json:"data"`
	FromTime int64    `json:"fromTime"`
	ToTime   int64    `json:"toTime"`
}

// CacheInfo is a read-only summary of one local-store entry, used for
// diagnostics.
type CacheInfo struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
	FromTime   int64  `json:"fromTime"`
	ToTime     int64  `json:"toTime"`
	Count      int    `json:"count"`
}

// MergeCandles merges incoming candles into an existing sorted sequence,
// deduplicating by Time. On a time collision the incoming candle wins. The
// result is sorted ascending by Time with no duplicates.
func MergeCandles(existing, incoming []Candle) []Candle {
	byTime := make(map[int64]Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTime[c.Time] = c
	}
	for _, c := range incoming {
		byTime[c.Time] = c
	}

	merged := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	return merged
}

// FilterRange returns the candles whose Time falls within [from, to],
// preserving order.
func FilterRange(candles []Candle, from, to int64) []Candle {
	filtered := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Time >= from && c.Time <= to {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// SortCandles ensures candles are strictly ascending by Time with no
// duplicates. Upstream providers are assumed to return sorted data but that
// is not trusted; already-sorted input is returned as-is, otherwise a sorted,
// deduplicated copy is built (last occurrence wins on duplicate times).
func SortCandles(candles []Candle) []Candle {
	if isStrictlySorted(candles) {
		return candles
	}
	return MergeCandles(nil, candles)
}

func isStrictlySorted(candles []Candle) bool {
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			return false
		}
	}
	return true
}

// CandleTimeBounds returns the min and max Time of a non-empty candle slice.
// The slice does not need to be sorted.
func CandleTimeBounds(candles []Candle) (min, max int64) {
	min, max = candles[0].Time, candles[0].Time
	for _, c := range candles[1:] {
		if c.Time < min {
			min = c.Time
		}
		if c.Time > max {
			max = c.Time
		}
	}
	return min, max
}
