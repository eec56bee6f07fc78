package onboarding

import (
	"fmt"
	"regexp"
	"strings"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

// HeuristicConfidence is the score given to every name found without the extraction service.
const HeuristicConfidence = 0.5

var (
	firstLastPattern = regexp.MustCompile(`^([A-Za-z]+)\s+([A-Za-z]+)$`)
	lastFirstPattern = regexp.MustCompile(`^([A-Za-z]+),\s*([A-Za-z]+)(?:\s+[A-Za-z]\.?)?$`)
	singleWord       = regexp.MustCompile(`^([A-Za-z]+)$`)
)

// HeuristicExtractor finds names line by line when the extraction service cannot be used.
type HeuristicExtractor struct{}

// Extract returns the candidates it recognised plus one warning per line it could not read.
// Line numbers count non-empty lines only.
func (HeuristicExtractor) Extract(text string) ([]domain.Candidate, []string) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return nil, nil
	}
	if looksLikeCSVHeader(lines[0]) {
		return extractCSV(lines)
	}
	return extractLines(lines, 0)
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func looksLikeCSVHeader(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(line, ",") && (strings.Contains(lower, "first") || strings.Contains(lower, "name"))
}

func extractLines(lines []string, offset int) ([]domain.Candidate, []string) {
	var (
		candidates []domain.Candidate
		warnings   []string
	)
	for i, line := range lines {
		c, ok := parseLine(line)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Line %d: Could not parse %q", offset+i+1, line))
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, warnings
}

func parseLine(line string) (domain.Candidate, bool) {
	var first, last string
	if m := firstLastPattern.FindStringSubmatch(line); m != nil {
		first, last = m[1], m[2]
	} else if m := lastFirstPattern.FindStringSubmatch(line); m != nil {
		first, last = m[2], m[1]
	} else if m := singleWord.FindStringSubmatch(line); m != nil {
		first = m[1]
	} else {
		return domain.Candidate{}, false
	}
	return domain.Candidate{
		FirstName:  domain.CapitalizeName(first),
		LastName:   domain.CapitalizeName(last),
		Confidence: HeuristicConfidence,
	}, true
}

// extractCSV reads "first,last" columns after a header row.
func extractCSV(lines []string) ([]domain.Candidate, []string) {
	var (
		candidates []domain.Candidate
		warnings   []string
	)
	for i := 1; i < len(lines); i++ {
		columns := strings.Split(lines[i], ",")
		for j := range columns {
			columns[j] = strings.TrimSpace(strings.ReplaceAll(columns[j], `"`, ""))
		}

		switch {
		case len(columns) >= 2 && columns[0] != "" && columns[1] != "":
			candidates = append(candidates, domain.Candidate{
				FirstName:  domain.CapitalizeName(columns[0]),
				LastName:   domain.CapitalizeName(columns[1]),
				Confidence: HeuristicConfidence,
			})
		case len(columns) == 1:
			found, lineWarnings := extractLines(columns, i)
			candidates = append(candidates, found...)
			warnings = append(warnings, lineWarnings...)
		default:
			warnings = append(warnings, fmt.Sprintf("Line %d: Invalid CSV format", i+1))
		}
	}
	return candidates, warnings
}
