package progress

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

type Event struct {
	Type     string           `json:"type"`
	Document string           `json:"document,omitempty"`
	Stage    string           `json:"stage,omitempty"`
	Progress *ProgressPayload `json:"progress,omitempty"`
	Output   string           `json:"output,omitempty"`
	Message  string           `json:"message,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type ProgressPayload struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Events writes one JSON object per line for consumers driving the tool from
// another process.
type Events struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

func NewEvents(w io.Writer) *Events {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Events{w: buf, enc: enc}
}

func (e *Events) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(ev)
	_ = e.w.Flush()
}

func payload(done, total int) *ProgressPayload {
	return &ProgressPayload{Current: done, Total: total, Percent: Fraction(done, total) * 100}
}

func (e *Events) Start(doc, stage string, total int) {
	e.emit(Event{Type: "start", Document: doc, Stage: stage, Progress: payload(0, total)})
}

func (e *Events) Step(doc string, done, total int) {
	e.emit(Event{Type: "progress", Document: doc, Progress: payload(done, total)})
}

func (e *Events) Done(doc, output string) {
	e.emit(Event{Type: "result", Document: doc, Output: output})
}

func (e *Events) Overall(done, total int) {
	e.emit(Event{Type: "overall", Progress: payload(done, total)})
}

func (e *Events) Warn(msg string) {
	e.emit(Event{Type: "warning", Message: msg})
}

func (e *Events) Error(doc string, err error) {
	e.emit(Event{Type: "error", Document: doc, Error: err.Error()})
}
