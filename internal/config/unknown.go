package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section. Lists are sorted so
// ties in edit distance resolve deterministically.
var knownKeys = map[string][]string{
	"server":   {"base_url", "timeout", "user_agent"},
	"degraded": {"auth_prefixes", "data_prefixes", "enabled", "probe_interval"},
	"notify":   {"access_denied_gap"},
	"session":  {"backend", "redis_addr", "redis_key", "token_path"},
	"logging":  {"log_format", "log_level"},
}

// knownSections is the sorted list of section names.
var knownSections = func() []string {
	names := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		names = append(names, k)
	}

	slices.Sort(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := unknownKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key, naming the section or key it
// most likely meant.
func unknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if len(key) == 1 {
			// Bare top-level key such as "base_url = ..." outside a section.
			if owner := sectionOf(section); owner != "" {
				return fmt.Errorf("unknown config key %q: it belongs in the [%s] section", section, owner)
			}
		}

		return suggest(fmt.Sprintf("unknown config section %q", section), section, knownSections)
	}

	if len(key) < 2 {
		return nil
	}

	field := key[1]
	if slices.Contains(keys, field) {
		return nil
	}

	return suggest(fmt.Sprintf("unknown config key %q in [%s]", field, section), field, keys)
}

// sectionOf returns the section a bare key belongs to, if any.
func sectionOf(field string) string {
	for _, section := range knownSections {
		if slices.Contains(knownKeys[section], field) {
			return section
		}
	}

	return ""
}

func suggest(msg, unknown string, known []string) error {
	if s := closestMatch(unknown, known); s != "" {
		return fmt.Errorf("%s, did you mean %q?", msg, s)
	}

	return errors.New(msg)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(strings.ToLower(unknown), k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: only the previous row is needed.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
