package gpt

import (
	"math/rand"
	"regexp"
	"strings"
)

var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

var nameSeparators = []string{" — ", " – ", " - ", ":", "(", ","}

// ExerciseNames returns the lowercased, de-duplicated exercise names of a numbered plan.
func ExerciseNames(plan string) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, line := range strings.Split(plan, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.ReplaceAll(m[1], "**", "")
		for _, sep := range nameSeparators {
			if i := strings.Index(name, sep); i >= 0 {
				name = name[:i]
			}
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// PickExerciseCount returns a count in the closed range [min, max].
func PickExerciseCount(min, max int, rng *rand.Rand) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
