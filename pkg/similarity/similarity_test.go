package similarity

import "testing"

func TestScoreSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Acme Bank", "Acme Banc Support"},
		{"Banco Supervielle", "BancoSupervie32"},
		{"French", "Quebec"},
		{"", "something"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if ab != ba {
			t.Fatalf("Score(%q, %q) = %v but Score(%q, %q) = %v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"healed", "healed", 1},
		{"Healed", "healed", 1},
		{"french", "quebec", 0},
		{"a", "a", 1},
		{"a", "b", 0},
		{"", "", 1},
		{"ab", "", 0},
		// Whitespace is ignored before comparing.
		{"Acme Bank", "AcmeBank", 1},
	}
	for _, c := range cases {
		if got := Score(c.a, c.b); got != c.want {
			t.Fatalf("Score(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	cases := [][2]string{
		{"Acme Bank", "Acme Banc Support"},
		{"Banco Supervielle", "Banco Superviellee Ayuda"},
		{"short", "a much longer unrelated name"},
	}
	for _, c := range cases {
		got := Score(c[0], c[1])
		if got < 0 || got > 1 {
			t.Fatalf("Score(%q, %q) = %v, out of [0,1]", c[0], c[1], got)
		}
	}
}

func TestScoreSimilarNamesAboveThreshold(t *testing.T) {
	// Typical squatter names should land above the classifier threshold.
	if got := Score("Banco Supervielle", "Banco Superviele"); got < 0.65 {
		t.Fatalf("expected near-identical names to score >= 0.65, got %v", got)
	}
	if got := Score("Acme Bank", "Completely Different Co"); got >= 0.65 {
		t.Fatalf("expected unrelated names to score < 0.65, got %v", got)
	}
}

func TestBestMatch(t *testing.T) {
	idx, score := BestMatch("Acme Bank", []string{"Zeta Corp", "Acme Banking", "Other"})
	if idx != 1 {
		t.Fatalf("expected index 1, got %d (score %v)", idx, score)
	}

	idx, score = BestMatch("anything", nil)
	if idx != -1 || score != 0 {
		t.Fatalf("expected (-1, 0) for empty candidates, got (%d, %v)", idx, score)
	}
}
