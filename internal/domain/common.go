package domain

// Timeframe identifies the bar duration of a candle sequence.
type Timeframe string

const (
	TimeframeM1  Timeframe = "m1"
	TimeframeM5  Timeframe = "m5"
	TimeframeM15 Timeframe = "m15"
	TimeframeH1  Timeframe = "h1"
	TimeframeD1  Timeframe = "d1"
)

// Seconds returns the bar duration in seconds. Unknown timeframes fall back
// to one minute, the default resolution served by the candle endpoint.
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case TimeframeM1:
		return 60
	case TimeframeM5:
		return 300
	case TimeframeM15:
		return 900
	case TimeframeH1:
		return 3600
	case TimeframeD1:
		return 86400
	default:
		return 60
	}
}
