package text

import (
	"strconv"
	"time"
)

// DocumentResult summarises one processed PDF.
type DocumentResult struct {
	Document string        `json:"document"`
	Pages    int           `json:"pages"`
	Lines    int           `json:"lines"`
	Output   string        `json:"output"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

func MapCSVRecord(item DocumentResult) []string {
	return []string{
		item.Document,
		strconv.Itoa(item.Pages),
		strconv.Itoa(item.Lines),
		item.Output,
		strconv.FormatBool(item.Skipped),
		strconv.FormatFloat(item.Duration.Seconds(), 'f', 2, 64),
	}
}

func GetCSVHeader() []string {
	return []string{"Document", "Pages", "Lines", "Output", "Skipped", "Seconds"}
}
