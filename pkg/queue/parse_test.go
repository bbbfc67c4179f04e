package queue

import (
	"reflect"
	"testing"
)

func TestExtractPipeField(t *testing.T) {
	text := "reasoning here\n| Summary Judgment | good | Total PFT Rewarded | 45 |"

	summary, ok := extractPipeField(text, "Summary Judgment")
	if !ok || summary != "good" {
		t.Errorf("Summary Judgment = %q, %v", summary, ok)
	}
	reward, ok := extractPipeInt(text, "Total PFT Rewarded")
	if !ok || reward != 45 {
		t.Errorf("Total PFT Rewarded = %d, %v", reward, ok)
	}
	if _, ok := extractPipeField(text, "Nonexistent"); ok {
		t.Errorf("found a field that is not there")
	}
}

func TestExtractPipeFieldMultiline(t *testing.T) {
	text := "| Reward | 25 |\n| Justification | concise, concrete |"

	reward, ok := extractPipeInt(text, "Reward")
	if !ok || reward != 25 {
		t.Errorf("Reward = %d, %v", reward, ok)
	}
	justification, ok := extractPipeField(text, "Justification")
	if !ok || justification != "concise, concrete" {
		t.Errorf("Justification = %q, %v", justification, ok)
	}
}

func TestParseBestOutput(t *testing.T) {
	tests := []struct {
		text  string
		count int
		want  int
	}{
		{"| BEST OUTPUT | 2 |", 3, 2},
		{"analysis first\n| BEST OUTPUT | 3 |", 3, 3},
		{"| BEST OUTPUT | 9 |", 3, 1}, // out of range
		{"no structured answer", 3, 1},
		{"", 3, 1},
	}
	for _, tt := range tests {
		if got := parseBestOutput(tt.text, tt.count); got != tt.want {
			t.Errorf("parseBestOutput(%q, %d) = %d, want %d", tt.text, tt.count, got, tt.want)
		}
	}
}

func TestCandidateLines(t *testing.T) {
	text := "Here are some tasks:\nDesign schema .. 40\n\nWrite report outline .. 60\nnot a candidate\nDraft 1-pager .. 50"
	want := []string{"Design schema .. 40", "Write report outline .. 60", "Draft 1-pager .. 50"}
	if got := candidateLines(text); !reflect.DeepEqual(got, want) {
		t.Errorf("candidateLines = %v, want %v", got, want)
	}
}

func TestDedupe(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	want := []string{"a", "b", "c"}
	if got := dedupe(in); !reflect.DeepEqual(got, want) {
		t.Errorf("dedupe = %v, want %v", got, want)
	}
}
