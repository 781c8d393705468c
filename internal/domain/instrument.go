package domain

import "strings"

// instrumentAliases maps common journal instrument codes to the canonical
// upstream datafeed symbols. The table is fixed; it is consulted after the
// code has been lower-cased and stripped of separators.
var instrumentAliases = map[string]string{
	"nq":    "usatechidxusd",
	"us100": "usatechidxusd",
	"mnq":   "usatechidxusd",
	"es":    "usa500idxusd",
	"mes":   "usa500idxusd",
	"sp500": "usa500idxusd",
	"ym":    "usa30idxusd",
	"mym":   "usa30idxusd",
	"us30":  "usa30idxusd",
	"fdax":  "deuidxeur",
	"dax":   "deuidxeur",
	"gc":    "xauusd",
	"gold":  "xauusd",
	"cl":    "lightcmdusd",
	"oil":   "lightcmdusd",
	"6e":    "eurusd",
	"eu":    "eurusd",
	"btc":   "btcusd",
	"eth":   "ethusd",
}

var instrumentSeparators = strings.NewReplacer("/", "", "-", "", "_", "", ".", "", " ", "")

// NormalizeInstrument converts a journal instrument code to its canonical
// upstream symbol. Unknown codes pass through unchanged apart from
// lower-casing and separator stripping.
func NormalizeInstrument(code string) string {
	normalized := instrumentSeparators.Replace(strings.ToLower(strings.TrimSpace(code)))
	if canonical, ok := instrumentAliases[normalized]; ok {
		return canonical
	}
	return normalized
}
