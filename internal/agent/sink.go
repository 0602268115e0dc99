package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// Sink receives a copy of every payload the sampler assembles, before it is
// sent.  Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, k *vsent.Keepalive) (err error)
}

// FileSink is a [Sink] implementation that appends payloads to a file as JSON
// lines.
type FileSink struct {
	mu   *sync.Mutex
	file *os.File
}

// NewFileSink opens or creates the sink file in append mode.
func NewFileSink(path string) (s *FileSink, err error) {
	// #nosec G302 G304 -- Trust the file path given in the environment.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening payload sink: %w", err)
	}

	return &FileSink{
		mu:   &sync.Mutex{},
		file: f,
	}, nil
}

// type check
var _ Sink = (*FileSink)(nil)

// Write implements the [Sink] interface for *FileSink.
func (s *FileSink) Write(_ context.Context, k *vsent.Keepalive) (err error) {
	b, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.file.Write(append(b, '\n'))
	if err != nil {
		return fmt.Errorf("appending payload: %w", err)
	}

	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() (err error) {
	return s.file.Close()
}
