package versions

import (
	"strconv"
	"strings"
)

// ParseTag reduces a tag string to its numeric components: the tag is split
// on ".", each component keeps only its digit characters, and those digits
// are parsed as an integer (no digits at all parses to 0). "v2.1" and
// "2.1rc" both parse to [2 1].
func ParseTag(tag string) []int {
	parts := strings.Split(tag, ".")
	nums := make([]int, 0, len(parts))
	for _, part := range parts {
		var digits strings.Builder
		for _, r := range part {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		n, _ := strconv.Atoi(digits.String())
		nums = append(nums, n)
	}
	return nums
}

// Compare orders two tags by their numeric components, lexicographically,
// with a shorter sequence padded with trailing zeros. Returns -1, 0 or 1.
// The comparison is numeric, so "3.10.0" sorts above "3.2.0".
func Compare(a, b string) int {
	na, nb := ParseTag(a), ParseTag(b)
	n := max(len(na), len(nb))
	for i := range n {
		var va, vb int
		if i < len(na) {
			va = na[i]
		}
		if i < len(nb) {
			vb = nb[i]
		}
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Latest returns the maximum tag under Compare, keeping the earliest
// element on ties. Returns "" for an empty slice.
func Latest(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	best := tags[0]
	for _, tag := range tags[1:] {
		if Compare(tag, best) > 0 {
			best = tag
		}
	}
	return best
}
