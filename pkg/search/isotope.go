package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseIsotopeErrors parses a comma-separated list of non-negative isotope
// errors into the sorted list of mass offsets to search, always including 0.
// "1,2" gives [-2 -1 0]. Leading, trailing or doubled commas, negative
// values and duplicates (0 included) are errors.
func ParseIsotopeErrors(s string) ([]int, error) {
	out := []int{0}
	if s == "" {
		return out, nil
	}
	if strings.HasPrefix(s, ",") || strings.HasSuffix(s, ",") || strings.Contains(s, ",,") {
		return nil, fmt.Errorf("misplaced comma in %q", s)
	}

	seen := map[int]bool{0: true}
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("isotope error %q is not an integer", field)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative isotope error %d", v)
		}
		if seen[-v] {
			return nil, fmt.Errorf("duplicate isotope error %d", v)
		}
		seen[-v] = true
		out = append(out, -v)
	}
	sort.Ints(out)
	return out, nil
}
