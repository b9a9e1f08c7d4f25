package scoring

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSeriesTotal is the physical ceiling for a five-shot series.
const MaxSeriesTotal = 50

// InvalidShotError reports a shot token that is neither "X" nor an
// integer in [0, 10]. It is a distinct type so callers can tell a
// malformed entry apart from a legitimate zero-score shot.
type InvalidShotError struct {
	Token string
}

func (e *InvalidShotError) Error() string {
	return fmt.Sprintf("invalid shot token %q", e.Token)
}

// IsValid reports whether token parses as a shot value.
func IsValid(token string) bool {
	_, err := Parse(token)
	return err == nil
}

// Parse converts a single shot token to its point value. "X" marks an
// inner ten and is worth 10 points. Tokens are trimmed and matched
// case-insensitively.
func Parse(token string) (int, error) {
	t := strings.TrimSpace(token)
	if strings.EqualFold(t, "X") {
		return 10, nil
	}
	v, err := strconv.Atoi(t)
	if err != nil || v < 0 || v > 10 {
		return 0, &InvalidShotError{Token: token}
	}
	return v, nil
}

// CountX counts inner tens in a shot list. Blank entries mean "not yet
// recorded" and are skipped.
func CountX(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if strings.EqualFold(strings.TrimSpace(t), "X") {
			n++
		}
	}
	return n
}

// Sum adds the parsed values of all non-blank tokens. A malformed
// token fails the whole sum; it is never coerced to zero.
func Sum(tokens []string) (int, error) {
	total := 0
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			continue
		}
		v, err := Parse(t)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
