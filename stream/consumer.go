package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/kbukum/chainkit/errors"
)

// Consumer is the downstream end of a Stream.
type Consumer interface {
	// Write takes v. ready reports whether the consumer can accept more;
	// false means saturated and the stream pauses until resumed.
	Write(ctx context.Context, v any) (ready bool, err error)
	// OnResume registers the callback the consumer invokes when it can
	// accept values again.
	OnResume(fn func())
	// End signals end-of-stream.
	End(ctx context.Context) error
}

// Func adapts a function into a Consumer that never saturates.
type Func func(ctx context.Context, v any) error

// Write calls f and always reports ready.
func (f Func) Write(ctx context.Context, v any) (bool, error) {
	if err := f(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}

// OnResume is a no-op: a Func never saturates.
func (Func) OnResume(func()) {}

// End is a no-op.
func (Func) End(context.Context) error { return nil }

// Buffer is an in-memory Consumer bounded by a high-water mark. Write
// reports saturation once the buffer holds HighWaterMark values; reading
// below the mark requests a resume. Buffer is also a pipeline.Iterator, so
// one stream's output can feed another.
type Buffer struct {
	mu        sync.Mutex
	items     []any
	hwm       int
	saturated bool
	ended     bool
	onResume  func()
	notify    chan struct{}
}

// NewBuffer creates a Buffer. A high-water mark below 1 is treated as 1.
func NewBuffer(highWaterMark int) *Buffer {
	return &Buffer{
		hwm:    max(highWaterMark, 1),
		notify: make(chan struct{}, 1),
	}
}

// Write appends v and reports saturation once the mark is reached.
func (b *Buffer) Write(_ context.Context, v any) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return false, errors.Usage("write to an ended buffer")
	}
	b.items = append(b.items, v)
	b.signal()
	if len(b.items) >= b.hwm {
		b.saturated = true
		return false, nil
	}
	return true, nil
}

// OnResume registers the callback run when a read drops below the mark.
func (b *Buffer) OnResume(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onResume = fn
}

// End marks the buffer ended and wakes a blocked Next.
func (b *Buffer) End(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
	b.signal()
	return nil
}

// Next blocks until a value is available or the buffer has ended.
func (b *Buffer) Next(ctx context.Context) (any, bool, error) {
	for {
		if v, ok := b.TryNext(); ok {
			return v, true, nil
		}
		if b.Ended() {
			// End may race with a final Write; take anything left.
			if v, ok := b.TryNext(); ok {
				return v, true, nil
			}
			return nil, false, nil
		}
		select {
		case <-b.notify:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// TryNext returns the oldest value without blocking.
func (b *Buffer) TryNext() (any, bool) {
	b.mu.Lock()
	if len(b.items) == 0 {
		b.mu.Unlock()
		return nil, false
	}
	v := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	resume := b.release()
	b.mu.Unlock()
	if resume != nil {
		resume()
	}
	return v, true
}

// Drain removes and returns every buffered value.
func (b *Buffer) Drain() []any {
	b.mu.Lock()
	items := b.items
	b.items = nil
	resume := b.release()
	b.mu.Unlock()
	if resume != nil {
		resume()
	}
	return items
}

// Close satisfies pipeline.Iterator.
func (b *Buffer) Close() error { return nil }

// Len returns the number of buffered values.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Ended reports whether End was called.
func (b *Buffer) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// release clears saturation once below the mark and returns the resume
// callback to run outside the lock. Callers hold b.mu.
func (b *Buffer) release() func() {
	if !b.saturated || len(b.items) >= b.hwm {
		return nil
	}
	b.saturated = false
	return b.onResume
}

func (b *Buffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// JSONLines writes each value as one JSON document per line.
type JSONLines struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines consumer on w. Output is buffered and
// flushed on End.
func NewJSONLines(w io.Writer) *JSONLines {
	bw := bufio.NewWriter(w)
	return &JSONLines{w: bw, enc: json.NewEncoder(bw)}
}

// Write encodes v as one line. It never reports saturation.
func (j *JSONLines) Write(_ context.Context, v any) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(v); err != nil {
		return false, errors.InvalidInput("value", err.Error()).WithCause(err)
	}
	return true, nil
}

// OnResume is a no-op.
func (*JSONLines) OnResume(func()) {}

// End flushes buffered output.
func (j *JSONLines) End(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}
