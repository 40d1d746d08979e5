package canon

import (
	"regexp"
	"strconv"
)

const (
	minPlausibleGB = 1
	maxPlausibleGB = 16384
)

var (
	tbPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:TB|To)\b`)
	gbPattern   = regexp.MustCompile(`(?i)(\d+)\s*(?:GB|Go)\b`)
	bareCapacityPattern = regexp.MustCompile(`\b(16|32|64|128|256|512|1024|2048)\b(\s*(?:TB|To|GB|Go|MB))?`)
)

var bareCapacities = map[int]bool{
	16: true, 32: true, 64: true, 128: true, 256: true, 512: true, 1024: true, 2048: true,
}

// ExtractCapacityGB finds a storage/memory capacity in the title and
// normalizes it to GiB, trying TB, then GB, then a bare known value.
// Returns (gb, raw, true) on success.
func ExtractCapacityGB(title string) (gb int, raw string, ok bool) {
	if m := tbPattern.FindStringSubmatch(title); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			gbVal := int(v * 1024)
			if plausible(gbVal) {
				return gbVal, m[0], true
			}
		}
	}

	if m := gbPattern.FindStringSubmatch(title); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && plausible(v) {
			return v, m[0], true
		}
	}

	for _, m := range bareCapacityPattern.FindAllStringSubmatch(title, -1) {
		if m[2] != "" {
			continue // followed by another unit, not a bare capacity
		}
		if v, err := strconv.Atoi(m[1]); err == nil && bareCapacities[v] {
			return v, m[0], true
		}
	}

	return 0, "", false
}

func plausible(gb int) bool {
	return gb >= minPlausibleGB && gb <= maxPlausibleGB
}
