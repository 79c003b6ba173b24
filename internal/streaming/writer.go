package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

var (
	// ErrWriteTimeout indicates a single write exceeded the configured
	// timeout, typically a client draining data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the client disconnected mid-stream.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the stream was closed programmatically.
	ErrStreamCanceled = errors.New("stream canceled")
)

// WriterConfig tunes timeout-protected response writing.
type WriterConfig struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between successful writes.
	IdleTimeout time.Duration
	// ChunkSize splits large writes so cancellation is checked often.
	// Zero writes buffers as received.
	ChunkSize int
}

// DefaultWriterConfig returns the production defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so stalled or disconnected
// clients terminate the stream instead of pinning a handler goroutine.
// Safe for concurrent use.
type TimeoutWriter struct {
	w       http.ResponseWriter
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     WriterConfig
	flusher http.Flusher

	mu        sync.Mutex
	started   time.Time
	lastWrite time.Time
	written   int64
	closed    bool
}

// NewTimeoutWriter wraps w. The writer observes ctx (normally the request
// context) for client disconnects.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, cfg WriterConfig) *TimeoutWriter {
	wctx, cancel := context.WithCancel(ctx)
	tw := &TimeoutWriter{
		w:         w,
		ctx:       wctx,
		cancel:    cancel,
		cfg:       cfg,
		started:   time.Now(),
		lastWrite: time.Now(),
	}
	if f, ok := w.(http.Flusher); ok {
		tw.flusher = f
	}
	go tw.idleChecker()
	return tw
}

// Write implements io.Writer with per-write timeouts and chunking.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	select {
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	default:
	}

	if tw.cfg.ChunkSize > 0 && len(p) > tw.cfg.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeOne(p)
}

func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return total, tw.contextError()
		default:
		}

		chunk := tw.cfg.ChunkSize
		if len(p) < chunk {
			chunk = len(p)
		}
		n, err := tw.writeOne(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return total, nil
}

func (tw *TimeoutWriter) writeOne(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := tw.w.Write(p)
		done <- result{n, err}
	}()

	timeout := tw.cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case res := <-done:
		if res.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.written += int64(res.n)
			tw.mu.Unlock()
			metrics.StreamBytesTotal.Add(float64(res.n))
		}
		return res.n, res.err
	case <-time.After(timeout):
		tw.cancel()
		return 0, ErrWriteTimeout
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(tw.cfg.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()
			if closed {
				return
			}
			if idle > tw.cfg.IdleTimeout {
				logging.Warn("stream idle for %v, terminating", idle)
				tw.cancel()
				return
			}
		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close stops the idle checker and rejects further writes. Idempotent.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Stats reports bytes written and elapsed time so far.
func (tw *TimeoutWriter) Stats() (int64, time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written, time.Since(tw.started)
}
