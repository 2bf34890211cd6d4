package conditional

import (
	"fmt"
	"strings"

	"github.com/trungdtbk/pss1830/pkg/util"
)

// MatchPolicy decides how a set of conditionals collapses to pass/fail.
type MatchPolicy string

const (
	// MatchAll requires every conditional to have matched at least once.
	MatchAll MatchPolicy = "all"
	// MatchAny is satisfied by the first conditional that matches.
	MatchAny MatchPolicy = "any"
)

// ParseMatchPolicy accepts "all" or "any" in any case; empty means all.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchAll:
		return MatchAll, nil
	case MatchAny:
		return MatchAny, nil
	}
	return "", util.NewValidationError(fmt.Sprintf("match must be one of all, any (got %q)", s))
}
