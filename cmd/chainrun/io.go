package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kbukum/chainkit/errors"
	"github.com/kbukum/chainkit/pipeline"
	"github.com/kbukum/chainkit/stream"
)

const maxLineSize = 1 << 20

type line struct {
	n    int
	data []byte
}

// readJSONLines decodes one JSON value per non-blank line of r. Numbers
// decode as json.Number so integers stay integers. Lines are read on the
// caller's goroutine, one per pull.
func readJSONLines(r io.Reader) *pipeline.Pipeline[any] {
	lines := pipeline.FromFunc(func(context.Context) pipeline.Iterator[line] {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		return &lineIter{sc: sc}
	})
	nonBlank := pipeline.Filter(lines, func(l line) bool { return len(l.data) > 0 })
	return pipeline.Map(nonBlank, func(_ context.Context, l line) (any, error) {
		dec := json.NewDecoder(bytes.NewReader(l.data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errors.InvalidInput("stdin", fmt.Sprintf("line %d: %v", l.n, err)).WithCause(err)
		}
		return v, nil
	})
}

type lineIter struct {
	sc   *bufio.Scanner
	n    int
	done bool
}

func (it *lineIter) Next(ctx context.Context) (line, bool, error) {
	if err := ctx.Err(); err != nil {
		return line{}, false, err
	}
	if it.done || !it.sc.Scan() {
		it.done = true
		return line{}, false, it.sc.Err()
	}
	it.n++
	return line{n: it.n, data: bytes.Clone(bytes.TrimSpace(it.sc.Bytes()))}, true, nil
}

func (it *lineIter) Close() error {
	it.done = true
	return nil
}

// writeJSONLines copies every value of buf to w as JSON lines until buf
// ends.
func writeJSONLines(ctx context.Context, buf *stream.Buffer, w io.Writer) error {
	out := stream.NewJSONLines(w)
	for {
		v, ok, err := buf.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return out.End(ctx)
		}
		if _, err := out.Write(ctx, v); err != nil {
			return err
		}
	}
}
