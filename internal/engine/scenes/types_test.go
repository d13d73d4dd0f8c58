package scenes

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Chuck: I need a word.", "S01E01", "chuck_mcgill")
	b := Fingerprint("Chuck: I need a word.", "S01E01", "chuck_mcgill")
	if a != b {
		t.Errorf("same input produced %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := Fingerprint("Chuck:   I need\na word.", "S01E01", "chuck_mcgill")
	b := Fingerprint("chuck: i need a word.", "S01E01", "chuck_mcgill")
	if a != b {
		t.Error("whitespace and case differences should not change the fingerprint")
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := Fingerprint("Chuck: I need a word.", "S01E01", "chuck_mcgill")
	if base == Fingerprint("Chuck: I need a word.", "S01E02", "chuck_mcgill") {
		t.Error("episode code should change the fingerprint")
	}
	if base == Fingerprint("Chuck: I need a word.", "S01E01", "jimmy_mcgill") {
		t.Error("character should change the fingerprint")
	}
}

func TestFinalize(t *testing.T) {
	s := Scene{
		Character:   "logan_roy",
		EpisodeCode: "S02E05",
		Text:        "Logan: You are not serious people.",
		WordCount:   9999, // stale value must be recomputed
	}
	s.Finalize()

	if s.WordCount != 6 {
		t.Errorf("WordCount = %d, want 6", s.WordCount)
	}
	if s.ID != Fingerprint(s.Text, "S02E05", "logan_roy") {
		t.Error("ID does not match the content fingerprint")
	}
}
