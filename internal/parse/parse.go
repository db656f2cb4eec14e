// Package parse extracts the three-variant result from raw model output.
package parse

import (
	"encoding/json"
	"strings"
)

// Result holds the three rewritten bullet-point variants. All three fields
// are always populated: if the model's output can't be decoded, every field
// carries the raw text instead (see Variants).
type Result struct {
	Standard   string `json:"standard"`
	DataDriven string `json:"datadriven"`
	Expert     string `json:"expert"`
}

// Variants parses raw model output into a Result.
//
// The model is instructed to reply with a single JSON object keyed
// standard/datadriven/expert, but models love to wrap JSON in prose
// ("Here you go: {...} hope that helps!"). So we grab the substring from
// the first '{' to the last '}' and try to decode that. It's deliberately
// loose — nested braces in prose can fool it — and that's fine: when
// decoding fails for any reason, all three fields fall back to the raw
// text verbatim. The user still gets usable output, just unstyled.
func Variants(raw string) Result {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")

	if start >= 0 && end > start {
		var res Result
		if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err == nil {
			// Missing keys decode to "" — callers treat that as-is.
			return res
		}
	}

	// Fallback: no braces, or the candidate substring wasn't valid JSON.
	return Result{Standard: raw, DataDriven: raw, Expert: raw}
}
