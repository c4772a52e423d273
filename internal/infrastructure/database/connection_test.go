package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orris-inc/autopay/internal/shared/logger"
)

type recordedEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	entries *[]recordedEntry
}

func (l recordingLogger) add(level, msg string) {
	*l.entries = append(*l.entries, recordedEntry{level: level, msg: msg})
}

func (l recordingLogger) Debugw(msg string, _ ...interface{})  { l.add("debug", msg) }
func (l recordingLogger) Infow(msg string, _ ...interface{})   { l.add("info", msg) }
func (l recordingLogger) Warnw(msg string, _ ...interface{})   { l.add("warn", msg) }
func (l recordingLogger) Errorw(msg string, _ ...interface{})  { l.add("error", msg) }
func (l recordingLogger) With(...interface{}) logger.Interface { return l }
func (l recordingLogger) Named(string) logger.Interface        { return l }

func TestQueryLogWriter_Levels(t *testing.T) {
	var entries []recordedEntry
	w := &queryLogWriter{log: recordingLogger{entries: &entries}}

	w.Printf("%s\n[%.3fms] [rows:%v] %s", "SLOW SQL >= 200ms", 250.0, 1, "SELECT * FROM payments")
	w.Printf("%s [error] %s", "repository.go:42", "Error 1213: Deadlock found")
	w.Printf("[%.3fms] %s", 1.2, "SELECT 1")

	assert.Equal(t, []recordedEntry{
		{"warn", "slow query"},
		{"error", "database error"},
		{"debug", "database query"},
	}, entries)
}

func TestClose_WithoutInit(t *testing.T) {
	assert.NoError(t, Close())
}
