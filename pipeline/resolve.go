package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"v.io/x/lib/lookpath"
	"v.io/x/lib/vlog"
)

// Locator finds an executable by name.
type Locator interface {
	// Locate returns the path of the named executable and whether it was
	// found.
	Locate(name string) (string, bool)
	String() string
}

type envDir string

// EnvDir returns a Locator that looks in the directory named by the
// environment variable. The variable is read on every lookup.
func EnvDir(variable string) Locator { return envDir(variable) }

func (e envDir) Locate(name string) (string, bool) {
	d := os.Getenv(string(e))
	if d == "" {
		return "", false
	}
	return Dir(d).Locate(name)
}

func (e envDir) String() string { return "$" + string(e) }

type dir string

// Dir returns a Locator that looks in a fixed directory.
func Dir(path string) Locator { return dir(path) }

func (d dir) Locate(name string) (string, bool) {
	path := filepath.Join(string(d), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode()&0111 == 0 {
		return "", false
	}
	return path, true
}

func (d dir) String() string { return string(d) }

type searchPath struct{}

// SearchPath returns a Locator that searches $PATH.
func SearchPath() Locator { return searchPath{} }

func (searchPath) Locate(name string) (string, bool) {
	path, err := lookpath.Look(map[string]string{"PATH": os.Getenv("PATH")}, name)
	if err != nil {
		return "", false
	}
	return path, true
}

func (searchPath) String() string { return "$PATH" }

// Resolver maps logical executable names to paths. The first Locator that
// finds a name wins.
type Resolver struct {
	Locators []Locator
}

// DefaultResolver returns a resolver that consults $GEM_PATH, then
// bundled (if not empty), then $PATH.
func DefaultResolver(bundled string) Resolver {
	r := Resolver{Locators: []Locator{EnvDir("GEM_PATH")}}
	if bundled != "" {
		r.Locators = append(r.Locators, Dir(bundled))
	}
	r.Locators = append(r.Locators, SearchPath())
	return r
}

// Resolve returns the path of the named executable. Names that contain a
// path separator are returned unchanged.
func (r Resolver) Resolve(name string) (string, error) {
	path, _, err := r.resolve(name)
	return path, err
}

func (r Resolver) resolve(name string) (path string, loc Locator, err error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return name, nil, nil
	}
	for _, l := range r.Locators {
		if path, ok := l.Locate(name); ok {
			vlog.VI(1).Infof("pipeline: resolved %s to %s (%v)", name, path, l)
			return path, l, nil
		}
	}
	return "", nil, errors.E(errors.NotExist, fmt.Sprintf("pipeline: executable %s not found in %s", name, r))
}

func (r Resolver) String() string {
	s := make([]string, len(r.Locators))
	for i, l := range r.Locators {
		s[i] = l.String()
	}
	return "[" + strings.Join(s, " ") + "]"
}

// Resolution is the outcome of resolving one executable.
type Resolution struct {
	Name string
	// Path is the resolved path, empty if not found.
	Path string
	// Locator names the locator that found the executable.
	Locator string
	Err     error
}

// Validate resolves each of names. It returns an error if any of them
// could not be found.
func (r Resolver) Validate(names ...string) ([]Resolution, error) {
	var (
		out     []Resolution
		missing []string
	)
	for _, name := range names {
		path, loc, err := r.resolve(name)
		res := Resolution{Name: name, Path: path, Err: err}
		if loc != nil {
			res.Locator = loc.String()
		}
		if err != nil {
			missing = append(missing, name)
		}
		out = append(out, res)
	}
	if len(missing) > 0 {
		return out, errors.E(errors.NotExist, "pipeline: missing executables: "+strings.Join(missing, ", "))
	}
	return out, nil
}
