package extraction

import (
	"strconv"
	"strings"
)

// detectVersion finds a version token in a file name.
// It returns the token and the file name of the previous version.
func detectVersion(name string) (version, previousName string, ok bool) {
	for _, re := range versionPatterns {
		loc := re.FindStringSubmatchIndex(name)
		if loc == nil || loc[2] < 0 {
			continue
		}
		version = name[loc[2]:loc[3]]
		prev := PreviousVersion(version)
		return version, name[:loc[2]] + prev + name[loc[3]:], true
	}
	return "", "", false
}

// PreviousVersion decrements a version token.
// Integers floor at 1; dotted versions decrement the last segment only when it is above zero.
func PreviousVersion(v string) string {
	if !strings.Contains(v, ".") {
		n, err := strconv.Atoi(v)
		if err != nil {
			return v
		}
		return strconv.Itoa(max(n-1, 1))
	}
	parts := strings.Split(v, ".")
	last, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || last <= 0 {
		return v
	}
	parts[len(parts)-1] = strconv.Itoa(last - 1)
	return strings.Join(parts, ".")
}
