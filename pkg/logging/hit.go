// Package logging adds a "hit" level to zerolog output. Hits are compliance violations
// and are always written, whatever the configured log level.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ArtifactSource describes where a scanned artifact came from.
type ArtifactSource string

const (
	// ArtifactSourceFile is a plain file of the build output.
	ArtifactSourceFile ArtifactSource = "file"
	// ArtifactSourceArchive is an entry of an archive in the build output.
	ArtifactSourceArchive ArtifactSource = "archive"
	// ArtifactSourceHost is an artifact handed over directly by a host build.
	ArtifactSourceHost ArtifactSource = "host"
)

// HitLevel is the level a hit is filtered by. Hits are logged at error level and
// rewritten to "hit" by HitLevelWriter.
const HitLevel zerolog.Level = zerolog.WarnLevel

const hitMarker = "_hit"

// HitLevelWriter rewrites the level of the next marked JSON entry to "hit".
type HitLevelWriter struct {
	mu        sync.Mutex
	out       io.Writer
	nextIsHit bool
}

func NewHitLevelWriter(out io.Writer) *HitLevelWriter {
	return &HitLevelWriter{out: out}
}

func (w *HitLevelWriter) SetOutput(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out = out
}

func (w *HitLevelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	isHit := w.nextIsHit
	w.nextIsHit = false
	out := w.out
	w.mu.Unlock()

	if !isHit || len(p) == 0 {
		return out.Write(p)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(p, &entry); err != nil {
		return out.Write(p)
	}

	if level := entry[zerolog.LevelFieldName]; level == "warn" || level == "error" {
		entry[zerolog.LevelFieldName] = "hit"
	}
	delete(entry, hitMarker)

	rewritten, err := json.Marshal(entry)
	if err != nil {
		return out.Write(p)
	}
	if _, err := out.Write(append(rewritten, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *HitLevelWriter) markNextAsHit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextIsHit = true
}

// HitEvent wraps a zerolog.Event that is written with level "hit".
type HitEvent struct {
	event  *zerolog.Event
	writer *HitLevelWriter
}

func (h *HitEvent) Str(key, val string) *HitEvent {
	h.event.Str(key, val)
	return h
}

func (h *HitEvent) Int(key string, val int) *HitEvent {
	h.event.Int(key, val)
	return h
}

func (h *HitEvent) Msg(msg string) {
	if h.writer != nil {
		h.writer.markNextAsHit()
	}
	h.event.Bool(hitMarker, true).Msg(msg)
}

var (
	hitWriterMu     sync.Mutex
	globalHitWriter *HitLevelWriter
)

// SetGlobalHitWriter installs the writer that the global logger writes through.
func SetGlobalHitWriter(writer *HitLevelWriter) {
	hitWriterMu.Lock()
	defer hitWriterMu.Unlock()
	globalHitWriter = writer
}

func hitWriter() *HitLevelWriter {
	hitWriterMu.Lock()
	defer hitWriterMu.Unlock()
	if globalHitWriter == nil {
		globalHitWriter = NewHitLevelWriter(os.Stderr)
		log.Logger = zerolog.New(globalHitWriter).With().Timestamp().Logger()
	}
	return globalHitWriter
}

// Hit creates a hit event for a compliance violation.
// Example: logging.Hit().Str("artifact", "bundle.js").Msg("VIOLATION")
func Hit() *HitEvent {
	writer := hitWriter()
	return &HitEvent{
		event:  log.WithLevel(zerolog.ErrorLevel),
		writer: writer,
	}
}

// ParseLevel extends zerolog.ParseLevel with the "hit" level.
func ParseLevel(levelStr string) (zerolog.Level, error) {
	if levelStr == "hit" {
		return HitLevel, nil
	}
	return zerolog.ParseLevel(levelStr)
}
