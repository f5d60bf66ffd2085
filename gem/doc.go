// Package gem runs the GEM alignment tools.
//
// Each wrapper builds a pipeline.Plan from the tool options and runs it
// with the Config of a Tools value. Inputs are read streams; a wrapper
// called with an empty output path returns a stream over the standard
// output of the tools, otherwise it waits for the tools and returns a
// stream over the output file.
//
// The executables are resolved by name through the Config resolver; see
// Executables for the full list.
package gem
