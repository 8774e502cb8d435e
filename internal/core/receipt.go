package core

import (
	"bytes"
	"strings"
	"time"

	"github.com/orrn/todoprint/internal/i18n"
)

// ESC/POS command sequences.
const (
	escCharcodeCP858 = "\x1bt\x13"
	escAlignCenter   = "\x1ba\x01"
	escFontA         = "\x1bM\x00"
	escFontB         = "\x1bM\x01"
	escBoldOn        = "\x1bE\x01"
	escBoldOff       = "\x1bE\x00"
	escCut           = "\x1dVB\x00"
)

const (
	receiptWidth  = 32
	wrapWidth     = 30
	prioritySlots = 5
)

// ReceiptGenerator renders a task into the ESC/POS byte stream sent to the
// printer. It is deterministic given its inputs and holds no state.
type ReceiptGenerator struct{}

func NewReceiptGenerator() *ReceiptGenerator {
	return &ReceiptGenerator{}
}

// Generate produces the full command sequence for one receipt: priority
// stars, priority name, timestamp, the wrapped task text, the motivation
// footer and a paper cut.
func (g *ReceiptGenerator) Generate(text string, priority int, language string, now time.Time, motivation string) []byte {
	rule := strings.Repeat("-", receiptWidth)

	var buf bytes.Buffer
	buf.WriteString(escCharcodeCP858)
	buf.WriteString("\n")

	buf.WriteString(escAlignCenter)
	buf.WriteString(escFontA)
	buf.WriteString(escBoldOn)
	buf.WriteString(priorityStars(priority) + "\n")

	buf.WriteString(escBoldOff)
	priorityName := i18n.Get(language, priorityKey(priority), "Normal")
	buf.WriteString("(" + priorityName + ")\n")
	buf.WriteString(rule + "\n")

	buf.WriteString(now.Format("2006-01-02 15:04:05") + "\n")
	buf.WriteString(rule + "\n\n")

	buf.WriteString(escBoldOn)
	for _, line := range WrapText(text, wrapWidth) {
		buf.WriteString(line + "\n")
	}

	buf.WriteString("\n" + rule + "\n")
	buf.WriteString(escFontB)
	buf.WriteString(escBoldOff)
	buf.WriteString(motivation + "\n")
	buf.WriteString("\n\n")

	buf.WriteString(escCut)

	return buf.Bytes()
}

// priorityStars renders filled slots as "* " and empty slots as "- ",
// trailing space trimmed: priority 3 gives "* * * - -".
func priorityStars(priority int) string {
	var b strings.Builder
	for i := 0; i < prioritySlots; i++ {
		if i < priority {
			b.WriteString("* ")
		} else {
			b.WriteString("- ")
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func priorityKey(priority int) string {
	switch priority {
	case 1:
		return "priority_1"
	case 2:
		return "priority_2"
	case 4:
		return "priority_4"
	case 5:
		return "priority_5"
	default:
		return "priority_3"
	}
}

// WrapText greedily wraps words: a word joins the current line when it fits
// along with one separator, otherwise it starts a new line. Words longer
// than width get a line of their own.
func WrapText(text string, width int) []string {
	words := strings.Fields(text)
	var lines []string
	var current []string
	length := 0

	for _, word := range words {
		sep := 0
		if len(current) > 0 {
			sep = 1
		}
		if length+sep+len(word) <= width {
			current = append(current, word)
			length += sep + len(word)
		} else {
			if len(current) > 0 {
				lines = append(lines, strings.Join(current, " "))
			}
			current = []string{word}
			length = len(word)
		}
	}

	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	return lines
}
