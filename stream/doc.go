// Package stream provides lazy, single pass iterators over reads.
//
// A Stream reads records from a file, from an arbitrary byte stream, or
// from the standard output of a running process. Files may be compressed
// with gzip (.gz) or snappy (.sz). Streams backed by a process own the
// process: Close drains its output, waits for it to exit and reports a
// failed exit, and Cancel kills it.
//
// Iterators follow the Scan/Record/Err/Close protocol:
//
//   it, err := stream.Open("reads.map")
//   ...
//   for it.Scan() {
//     r := it.Record()
//     ...
//   }
//   if err := it.Close(); err != nil {
//     ...
//   }
//
// Close must be called exactly once for every iterator; it returns the
// value of Err.
package stream
