package client

import (
	"fmt"
	"strconv"
)

// parseCounter parses the decimal counter string carried in an
// envelope, mirroring internal/server's parsing so both sides of the
// overlay apply the same replay-protection semantics.
func parseCounter(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", s, err)
	}
	return v, nil
}
