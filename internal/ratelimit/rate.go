package ratelimit

import (
	"fmt"
	"strings"

	"github.com/ulule/limiter/v3"
)

// Rate is a request budget over a fixed window, written as "<limit>-<S|M|H|D>", e.g. "50-H".
type Rate = limiter.Rate

// ParseRates parses a comma separated list such as "200-D,50-H".
// An empty string yields no rates.
func ParseRates(s string) ([]Rate, error) {
	var rates []Rate
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		rate, err := limiter.NewRateFromFormatted(part)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", part, err)
		}
		if rate.Limit <= 0 {
			return nil, fmt.Errorf("invalid rate %q: limit must be positive", part)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}
