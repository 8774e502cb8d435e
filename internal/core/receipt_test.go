package core

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestPriorityStars(t *testing.T) {
	cases := []struct {
		priority int
		want     string
	}{
		{1, "* - - - -"},
		{3, "* * * - -"},
		{5, "* * * * *"},
	}
	for _, c := range cases {
		if got := priorityStars(c.priority); got != c.want {
			t.Fatalf("priorityStars(%d) = %q, want %q", c.priority, got, c.want)
		}
	}
}

func TestWrapTextGreedy(t *testing.T) {
	got := WrapText("Milch Brot Eier kaufen und danach die Post abholen", 30)
	want := []string{
		"Milch Brot Eier kaufen und",
		"danach die Post abholen",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WrapText = %q, want %q", got, want)
	}
}

func TestWrapTextLongWord(t *testing.T) {
	got := WrapText("ab Donaudampfschifffahrtsgesellschaftskapitaen cd", 30)
	want := []string{
		"ab",
		"Donaudampfschifffahrtsgesellschaftskapitaen",
		"cd",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WrapText = %q, want %q", got, want)
	}
}

func TestWrapTextEmpty(t *testing.T) {
	if got := WrapText("   ", 30); len(got) != 0 {
		t.Fatalf("WrapText of whitespace = %q, want empty", got)
	}
}

func TestGenerateReceiptLayout(t *testing.T) {
	g := NewReceiptGenerator()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	data := g.Generate("Buy milk", 4, "en", now, "Get it done!")

	if !bytes.HasSuffix(data, []byte(escCut)) {
		t.Fatalf("receipt must end with the cut command")
	}
	text := string(data)
	for _, want := range []string{
		"* * * * -\n",
		"(High)\n",
		"2025-03-14 09:26:53\n",
		"Buy milk\n",
		"Get it done!\n",
		strings.Repeat("-", 32) + "\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt missing %q\nfull: %q", want, text)
		}
	}

	// Bold is switched on for the stars and the task body.
	if strings.Count(text, escBoldOn) != 2 {
		t.Fatalf("bold-on count = %d, want 2", strings.Count(text, escBoldOn))
	}
	if !strings.Contains(text, escFontB+escBoldOff+"Get it done!\n") {
		t.Fatalf("motivation must print in font B without bold")
	}
}

func TestGenerateReceiptDeterministic(t *testing.T) {
	g := NewReceiptGenerator()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := g.Generate("Call bank", 1, "de", now, "Pack es an!")
	b := g.Generate("Call bank", 1, "de", now, "Pack es an!")
	if !bytes.Equal(a, b) {
		t.Fatalf("identical inputs must produce identical command sequences")
	}
	if !strings.Contains(string(a), "(Niedrig)\n") {
		t.Fatalf("german priority name missing: %q", string(a))
	}
}
