package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDelay parses user-supplied delay strings. Go duration syntax is
// accepted as-is ("90m", "2h30m"), extended with day and week units users
// actually type ("3d", "1w", "1d12h").
func ParseDelay(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, errors.New("empty delay")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var total time.Duration
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'w' || r == 'd' || r == 'h' || r == 'm' || r == 's':
			if num == "" {
				return 0, fmt.Errorf("invalid delay %q", raw)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid delay %q", raw)
			}
			num = ""
			switch r {
			case 'w':
				total += time.Duration(n) * 7 * 24 * time.Hour
			case 'd':
				total += time.Duration(n) * 24 * time.Hour
			case 'h':
				total += time.Duration(n) * time.Hour
			case 'm':
				total += time.Duration(n) * time.Minute
			case 's':
				total += time.Duration(n) * time.Second
			}
		default:
			return 0, fmt.Errorf("invalid delay %q", raw)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("delay %q is missing a unit (w/d/h/m/s)", raw)
	}
	if total <= 0 {
		return 0, fmt.Errorf("invalid delay %q", raw)
	}
	return total, nil
}

// formatDelay renders a duration the way users typed it: whole days first,
// then the sub-day remainder.
func formatDelay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	rest := (d % (24 * time.Hour)).Round(time.Second)
	switch {
	case days > 0 && rest > 0:
		return fmt.Sprintf("%dd%s", days, rest)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	default:
		return rest.String()
	}
}
