package util

import (
	"io"
	"testing"
)

// BenchmarkLogger_Suppressed measures the cost of a log call below the
// configured level, which is the common case on the dispatch path.
func BenchmarkLogger_Suppressed(b *testing.B) {
	l := NewLogger(0)
	l.SetOutput(io.Discard)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Debug("routed %s message", "echo")
	}
}

// BenchmarkLogger_Named measures a formatted write through a named
// logger.
func BenchmarkLogger_Named(b *testing.B) {
	l := NewLogger(3)
	l.SetOutput(io.Discard)
	named := l.Named("recorder")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		named.Debug("frame %d buffered (%d bytes)", i, 1024)
	}
}
