package naming

import (
	"math"
	"testing"
)

func TestNormalizeSeriesName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Championship Series February 2023": "championship series",
		"Championship Series 2023":          "championship series",
		"Winter Edition Q1 2024":            "winter series",
		"  Spring   Classic - MAR 2021 ":    "spring classic",
		"Players' Cup 2035":                 "players cup 2035",
	}
	for in, want := range cases {
		if got := NormalizeSeriesName(in); got != want {
			t.Fatalf("NormalizeSeriesName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanGameName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Monday $100 Deepstack #12":        "deepstack",
		"MONDAY NIGHT HOLD'EM 12/03/2024":  "night holdem",
		"Bounty Hunter - Event 5 (Week 3)": "bounty hunter",
		"$5,000 GTD Friday Freezeout 2024": "gtd freezeout",
	}
	for in, want := range cases {
		if got := CleanGameName(in); got != want {
			t.Fatalf("CleanGameName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDice(t *testing.T) {
	t.Parallel()

	if got := Dice("night", "night"); got != 1 {
		t.Fatalf("identical strings: got %v", got)
	}
	if got := Dice("", ""); got != 0 {
		t.Fatalf("empty strings: got %v", got)
	}
	if got := Dice("ab", "cd"); got != 0 {
		t.Fatalf("disjoint strings: got %v", got)
	}
	// night: ni ig gh ht / nacht: na ac ch ht -> one shared bigram
	if got := Dice("night", "nacht"); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("night/nacht: got %v", got)
	}
}

func TestSimilarityIgnoresTemporalTokens(t *testing.T) {
	t.Parallel()

	if got := Similarity("Championship Series February 2023", "Championship Series 2023"); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if got := Similarity("Championship Series", "Summer Slam"); got >= 50 {
		t.Fatalf("expected low similarity, got %d", got)
	}
}

func TestTitleCase(t *testing.T) {
	t.Parallel()

	if got := TitleCase("night holdem"); got != "Night Holdem" {
		t.Fatalf("unexpected %q", got)
	}
}
