// Package pipeline runs chains of external tools connected by OS pipes.
//
// A Plan lists the stages of a chain. The first stage reads the plan
// input, serialized through a Transform on a feeder goroutine; every other
// stage reads the standard output of its predecessor directly. The output
// of the last stage is written to a file, to a temporary file owned by the
// returned stream, or exposed as a process backed stream.
//
// Stages may also run in process: a stage with a Filter rewrites the byte
// stream between its neighbors on a goroutine.
//
// Executables are located through a Resolver. The default resolver looks
// in $GEM_PATH, then in the bundled binary directory, then in $PATH.
package pipeline
