// Package progress reports per-document and overall progress, either to a
// terminal or as newline-delimited JSON events.
package progress

type Reporter interface {
	// Start announces a document stage; total is its page count.
	Start(doc, stage string, total int)
	Step(doc string, done, total int)
	Done(doc, output string)
	Overall(done, total int)
	Warn(msg string)
	Error(doc string, err error)
}

type Nop struct{}

func (Nop) Start(string, string, int) {}
func (Nop) Step(string, int, int)     {}
func (Nop) Done(string, string)       {}
func (Nop) Overall(int, int)          {}
func (Nop) Warn(string)               {}
func (Nop) Error(string, error)       {}

// Fraction is done/total clamped to [0, 1]; an empty total counts as complete.
func Fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(done) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
