package text

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

var spaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)

// NormalizeLine trims a recognised line and collapses whitespace runs. Without
// useSpaceChar, spaces that sit between two CJK characters are dropped, since
// engines tend to emit one per glyph gap.
func NormalizeLine(line string, useSpaceChar bool) string {
	line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	if useSpaceChar || !strings.Contains(line, " ") {
		return line
	}

	runes := []rune(line)
	var b strings.Builder
	b.Grow(len(line))
	for i, r := range runes {
		if r == ' ' && i > 0 && i < len(runes)-1 && isCJK(runes[i-1]) && isCJK(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeLines normalises every line and drops the ones left empty.
func NormalizeLines(lines []string, useSpaceChar bool) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if n := NormalizeLine(line, useSpaceChar); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// SplitLines splits free text (as returned by vision models) into lines.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // full-width forms
}

// LoadCharset reads a character dictionary with one entry per line (the
// ppocr_keys format) and returns the distinct characters in file order.
func LoadCharset(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening character dictionary %s: %w", path, err)
	}
	defer f.Close()

	seen := make(map[rune]bool)
	var b strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		for _, r := range strings.TrimRight(scanner.Text(), "\r\n") {
			if seen[r] {
				continue
			}
			seen[r] = true
			b.WriteRune(r)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading character dictionary %s: %w", path, err)
	}
	return b.String(), nil
}
