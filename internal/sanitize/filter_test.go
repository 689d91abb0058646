package sanitize

import "testing"

func TestFilterLinesDropsChrome(t *testing.T) {
	in := "──────\n> \nHello world!\n╭ box border\n!!!\n"
	got := FilterLines(in)
	want := "Hello world!\n"
	if got != want {
		t.Errorf("FilterLines() = %q, want %q", got, want)
	}
}

func TestFilterLinesKeepsPromptLinesWithContent(t *testing.T) {
	// the line survives the chrome pass; the '>' itself is not in the kept
	// punctuation set, so only the content remains
	got := FilterLines("> run the tests\n")
	if got != " run the tests\n" {
		t.Errorf("got %q, want prompt content kept", got)
	}
}

func TestFilterLineContentStripsSymbols(t *testing.T) {
	got := FilterLines("deploy ✓ done @ 12:00\n")
	want := "deploy  done  12:00\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFilterLinesUsesUnicodeCategories(t *testing.T) {
	// CJK letters must survive the letter/number/space filter.
	got := FilterLines("构建成功, 没有错误.\n")
	want := "构建成功, 没有错误.\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
