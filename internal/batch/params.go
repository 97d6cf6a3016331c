package batch

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"tgops/internal/telegram"
)

const defaultLimit = 100

// mergeOptions flattens the nested "options" bag into the top level.
// Top-level keys win.
func mergeOptions(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	if nested, ok := raw["options"].(map[string]any); ok {
		for k, v := range nested {
			out[k] = v
		}
	}
	for k, v := range raw {
		if k == "options" {
			continue
		}
		out[k] = v
	}
	return out
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "param",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result: out,
	})
	if err != nil {
		return telegram.NewError(telegram.KindInvalidParameters, err, "invalid parameters")
	}
	if err := dec.Decode(params); err != nil {
		return telegram.NewError(telegram.KindInvalidParameters, err, "invalid parameters: %s", err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return telegram.NewError(telegram.KindInvalidParameters, nil, "%s is required", name)
	}
	return nil
}

// limitOf reads a result limit leniently: anything missing, malformed or
// not positive means the default.
func limitOf(v any) int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return defaultLimit
		}
		n = parsed
	default:
		return defaultLimit
	}
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// timeoutOf reads an item timeout given in seconds or as a duration string.
func timeoutOf(v any) (time.Duration, bool) {
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Second, t > 0
	case float64:
		return time.Duration(t * float64(time.Second)), t > 0
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d, d > 0
		}
		if secs, err := strconv.ParseFloat(t, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), secs > 0
		}
	}
	return 0, false
}

// messageIDs combines the single messageId and list messageIds parameters.
func messageIDs(single int, list []int) []int {
	ids := append([]int(nil), list...)
	if single > 0 {
		ids = append([]int{single}, ids...)
	}
	return ids
}
