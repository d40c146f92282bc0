// Package pipeline provides lazy, pull-based sequences.
//
// An Iterator is the lazy-sequence type of the chain engine: a stage may
// return one to fan out, and the engine pulls it to exhaustion one value at a
// time. A Pipeline is a reusable factory of iterators and serves as the
// upstream producer for chain.Run and stream.Feed.
//
// # Sources
//
//   - FromSlice, From, FromFunc: in-memory and custom iterators
//   - FromSeq: a synchronous Go generator (iter.Seq)
//   - FromChannel: values received from a channel
//   - Generate: an asynchronous generator running on its own goroutine
//
// # Operators
//
//   - Map, Filter, FlatMap, Tap, Concat
//   - Erase: convert Pipeline[T] to Pipeline[any]
//
// # Usage
//
//	src := pipeline.FromSlice([]int{1, 2, 3})
//	squares := pipeline.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * n, nil
//	})
//	results, _ := pipeline.Collect(ctx, squares)
package pipeline
