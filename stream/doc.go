// Package stream drains the results of a chain stage into a downstream
// Consumer with single-slot backpressure.
//
// Each Write runs the stage on one chunk and pushes its lazy result on a
// stack of open sequences. The pump pulls from the top of the stack, so
// nested fan-out is delivered depth-first. When the consumer reports
// saturation the stream pauses until the consumer requests a resume; values
// that were produced but not delivered stay queued. A Write returns once its
// sequences are exhausted; later deliveries wait for the resume.
//
//	buf := stream.NewBuffer(16)
//	s, err := stream.New(stage, buf, stream.WithName("ingest"))
//	err = stream.Feed(ctx, src, s)
//
// Stop raised by the stage ends the stream. Final delivers its value and
// then ends the whole stream, not only the current fan-out branch.
package stream
