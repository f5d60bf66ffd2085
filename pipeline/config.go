package pipeline

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/grailbio/base/log"
)

// Config holds the settings shared by all runs.
type Config struct {
	// Resolver locates stage executables.
	Resolver Resolver
	// TempDir is the directory for temporary outputs and inputs. Empty
	// means os.TempDir().
	TempDir string
	// Stderr receives the standard error of every stage.
	Stderr io.Writer
	// TrimQualities pads or cuts quality strings that do not match the
	// sequence length when records are exported to FASTQ.
	TrimQualities bool
	// Env lists extra "KEY=value" entries for the stage environment. They
	// override the entries inherited from this process.
	Env []string
}

// DefaultConfig returns the default configuration. Stage stderr is shown
// only when debug logging is enabled.
func DefaultConfig() Config {
	cfg := Config{
		Resolver: DefaultResolver(""),
		Stderr:   ioutil.Discard,
	}
	if log.At(log.Debug) {
		cfg.Stderr = os.Stderr
	}
	return cfg
}

func (cfg Config) tempDir() string {
	if cfg.TempDir != "" {
		return cfg.TempDir
	}
	return os.TempDir()
}

func (cfg Config) stderr() io.Writer {
	if cfg.Stderr == nil {
		return ioutil.Discard
	}
	return cfg.Stderr
}

// WithEnv returns a copy of cfg with the given entries appended to Env.
func (cfg Config) WithEnv(env ...string) Config {
	cfg.Env = append(append([]string(nil), cfg.Env...), env...)
	return cfg
}
