// parse.go extracts the pipe-delimited fields the judging prompts ask
// the model to answer with. The formats are loose by design: the model
// is asked for "| Label | value |" and anything around it is ignored.
package queue

import (
	"regexp"
	"strconv"
	"strings"
)

var pipeFieldCache = map[string]*regexp.Regexp{}

func pipeFieldPattern(label string) *regexp.Regexp {
	if re, ok := pipeFieldCache[label]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\|\s*` + regexp.QuoteMeta(label) + `\s*\|\s*([^|\n]+)`)
	pipeFieldCache[label] = re
	return re
}

// extractPipeField returns the trimmed value following "| label |" in
// text, and whether it was found.
func extractPipeField(text, label string) (string, bool) {
	m := pipeFieldPattern(label).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return "", false
	}
	return value, true
}

var leadingInt = regexp.MustCompile(`\d+`)

// extractPipeInt returns the first integer in the value following
// "| label |" in text.
func extractPipeInt(text, label string) (int, bool) {
	value, ok := extractPipeField(text, label)
	if !ok {
		return 0, false
	}
	digits := leadingInt.FindString(value)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseBestOutput returns the 1-based candidate index from a selector
// response, defaulting to 1 on any parse failure.
func parseBestOutput(text string, candidateCount int) int {
	k, ok := extractPipeInt(text, "BEST OUTPUT")
	if !ok || k < 1 || k > candidateCount {
		return 1
	}
	return k
}

// candidateLines extracts task-candidate lines ("<description> .. <value>")
// from a generation response, dropping anything that does not carry the
// separator-and-value suffix.
var candidatePattern = regexp.MustCompile(`\.\.\s*\d+\s*$`)

func candidateLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if candidatePattern.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

// dedupe removes duplicate strings, preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
