package narration

import "testing"

func TestTruncateIdentityWhenAlreadyComplete(t *testing.T) {
	s := "Everything worked fine."
	if got := TruncateToLastCompleteSentence(s); got != s {
		t.Errorf("got %q", got)
	}
}

func TestTruncateTrimsTrailingFragment(t *testing.T) {
	got := TruncateToLastCompleteSentence("First part. Second part is a fragment without end")
	if got != "First part." {
		t.Errorf("got %q", got)
	}
}

func TestTruncateKeepsOriginalWhenNoSentenceFound(t *testing.T) {
	s := "no terminal punctuation at all"
	if got := TruncateToLastCompleteSentence(s); got != s {
		t.Errorf("got %q", got)
	}
}

func TestTruncateKeepsOriginalWhenResultTooShort(t *testing.T) {
	s := "Hi. this trails off without punctuation"
	got := TruncateToLastCompleteSentence(s)
	if got != "Hi." {
		t.Errorf("got %q", got)
	}

	s2 := ". this trails off without punctuation"
	got2 := TruncateToLastCompleteSentence(s2)
	if got2 != s2 {
		t.Errorf("expected original kept when truncated prefix too short, got %q", got2)
	}
}

func TestStripForTTSSinglePass(t *testing.T) {
	got := stripForTTS(`  "hello world"  `)
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
	// nested quotes: only one layer is removed, confirming single-pass behavior
	got2 := stripForTTS(`"'inner'"`)
	if got2 != "'inner'" {
		t.Errorf("got %q, expected single-pass (one layer) removal", got2)
	}
}
