package internal

import (
	"io"
	"sync"
)

// SyncWriter serializes Write calls so receipts from concurrent workers do
// not interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WithStacks(s.w.Write(p))
}
