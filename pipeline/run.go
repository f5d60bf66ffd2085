package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gemtools/stream"
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// run is one execution of a Plan. It implements stream.Process for the
// stream over its output.
type run struct {
	ctx  context.Context
	cfg  Config
	plan Plan
	id   string

	// args holds the resolved command line of every stage.
	args [][]string
	// temps are files owned by the run. output is the temporary output, if
	// any; it is handed over to the result stream on success.
	temps  []string
	output string

	procs      []*proc
	wg         sync.WaitGroup
	errs       errors.Once
	inputTaken bool
	failed     bool
	killed     int32
	waited     bool

	waitOnce sync.Once
	waitErr  error
}

type proc struct {
	cmd   *exec.Cmd
	index int
	tail  *tailWriter
}

// Run starts the chain described by plan. If plan.Output or
// plan.TempOutput is set, Run waits for the chain to exit and returns a
// stream over the output file; a failed stage is reported as a
// *ToolError. Otherwise the returned stream reads the standard output of
// the last stage, and its Close reports failed stages.
//
// On error, every started stage is killed and reaped and the temporary
// files of the run are removed.
func Run(ctx context.Context, cfg Config, plan Plan) (*stream.Stream, error) {
	r := &run{ctx: ctx, cfg: cfg, plan: plan, id: uuid.New().String()[:8]}
	s, err := r.start()
	if err != nil {
		r.abort()
		return nil, err
	}
	return s, nil
}

func (r *run) toolError(index int, err error) *ToolError {
	return &ToolError{
		Chain:    r.plan.Name,
		Stage:    r.plan.Stages[index].name(),
		Index:    index,
		ExitCode: -1,
		Err:      err,
	}
}

func (r *run) hasInput() bool {
	return r.plan.Input != nil || r.plan.RawInput != nil
}

func (r *run) start() (*stream.Stream, error) {
	stages := r.plan.Stages
	if len(stages) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pipeline %s: no stages", r.plan.Name))
	}
	if r.plan.Input != nil && r.plan.RawInput != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pipeline %s: both Input and RawInput are set", r.plan.Name))
	}
	if r.plan.Passthrough {
		if _, ok := r.plan.Input.(stream.RawSource); !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("pipeline %s: passthrough input %T has no raw bytes", r.plan.Name, r.plan.Input))
		}
	}
	r.args = make([][]string, len(stages))
	for i, st := range stages {
		if st.Filter != nil {
			continue
		}
		if len(st.Args) == 0 {
			return nil, r.toolError(i, errors.E(errors.Invalid, "empty command line"))
		}
		path, err := r.cfg.Resolver.Resolve(st.Args[0])
		if err != nil {
			return nil, r.toolError(i, err)
		}
		r.args[i] = append([]string{path}, st.Args[1:]...)
	}
	log.Debug.Printf("pipeline %s [%s]: %s", r.plan.Name, r.id, r.plan)

	feed := r.hasInput()
	if feed && r.plan.InputFile {
		path, err := r.writeInputFile()
		if err != nil {
			return nil, err
		}
		for _, args := range r.args {
			for j := range args {
				args[j] = strings.Replace(args[j], InputPlaceholder, path, -1)
			}
		}
		feed = false
	}

	// ins[i] and outs[i] are the stdin and stdout of stage i. The parent
	// closes its copies once the stages have started.
	n := len(stages)
	ins, outs := make([]*os.File, n), make([]*os.File, n)
	var feedW, resultR *os.File
	fail := func(err error) (*stream.Stream, error) {
		closeFiles(ins...)
		closeFiles(outs...)
		closeFiles(feedW, resultR)
		return nil, err
	}
	if feed {
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail(errors.E(err, "pipeline: creating input pipe"))
		}
		ins[0], feedW = pr, pw
	}
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail(errors.E(err, "pipeline: creating pipe"))
		}
		outs[i], ins[i+1] = pw, pr
	}
	switch {
	case r.plan.Output != "":
		f, err := os.Create(r.plan.Output)
		if err != nil {
			return fail(errors.E(err, "pipeline: creating output", r.plan.Output))
		}
		outs[n-1] = f
	case r.plan.TempOutput:
		f, err := r.tempFile(tempSuffix(r.plan.OutputType))
		if err != nil {
			return fail(err)
		}
		r.output = f.Name()
		outs[n-1] = f
	default:
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail(errors.E(err, "pipeline: creating output pipe"))
		}
		outs[n-1], resultR = pw, pr
	}

	env := r.env()
	for i, st := range stages {
		if st.Filter != nil {
			continue
		}
		args := r.args[i]
		cmd := exec.Command(args[0], args[1:]...)
		if ins[i] != nil {
			cmd.Stdin = ins[i]
		}
		cmd.Stdout = outs[i]
		tail := &tailWriter{}
		cmd.Stderr = io.MultiWriter(r.cfg.stderr(), tail)
		cmd.Env = env
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if err := cmd.Start(); err != nil {
			return fail(r.toolError(i, err))
		}
		vlog.VI(1).Infof("pipeline %s [%s]: started stage %d pid %d: %s", r.plan.Name, r.id, i, cmd.Process.Pid, strings.Join(args, " "))
		r.procs = append(r.procs, &proc{cmd: cmd, index: i, tail: tail})
	}

	// Every stage is running; hand the remaining descriptors over.
	for i, st := range stages {
		if st.Filter == nil {
			closeFiles(ins[i], outs[i])
			continue
		}
		r.wg.Add(1)
		go r.filter(i, st.Filter, ins[i], outs[i])
	}
	if feed {
		r.inputTaken = true
		r.wg.Add(1)
		go r.feed(feedW)
	}

	opts := stream.Opts{Type: r.plan.OutputType, Quality: r.plan.Quality}
	if resultR != nil {
		if opts.Type == stream.Unknown {
			opts.Type = stream.Map
		}
		return stream.NewProcess(resultR, r, opts), nil
	}
	if err := r.Wait(); err != nil {
		return nil, err
	}
	path := r.plan.Output
	if path == "" {
		path = r.output
		opts.RemoveOnClose = true
	}
	if opts.Type == stream.Unknown && stream.GuessType(path) == stream.Unknown {
		opts.Type = stream.Map
	}
	s, err := stream.Open(path, opts)
	if err != nil && opts.RemoveOnClose {
		r.remove(path)
	}
	return s, err
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close() // nolint: errcheck
		}
	}
}

func tempSuffix(t stream.Type) string {
	switch t {
	case stream.Sequence:
		return ".fastq"
	case stream.SAM:
		return ".sam"
	case stream.BAM:
		return ".bam"
	}
	return ".map"
}

func (r *run) env() []string {
	if len(r.cfg.Env) == 0 {
		return nil
	}
	return append(os.Environ(), r.cfg.Env...)
}

// tempFile creates a file owned by the run.
func (r *run) tempFile(suffix string) (*os.File, error) {
	f, err := ioutil.TempFile(r.cfg.tempDir(), "gem-"+r.id+"-*"+suffix)
	if err != nil {
		return nil, errors.E(err, "pipeline: creating temporary file in", r.cfg.tempDir())
	}
	r.temps = append(r.temps, f.Name())
	return f, nil
}

func (r *run) writeInputFile() (string, error) {
	f, err := r.tempFile(".input")
	if err != nil {
		return "", err
	}
	r.inputTaken = true
	w := bufio.NewWriterSize(f, 1<<20)
	err = r.writeInput(w)
	if e := w.Flush(); e != nil && err == nil {
		err = e
	}
	if e := f.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return "", errors.E(err, "pipeline: writing input file", f.Name())
	}
	return f.Name(), nil
}

// writeInput serializes the plan input into w and closes it.
func (r *run) writeInput(w io.Writer) error {
	if r.plan.RawInput != nil {
		_, err := io.Copy(w, r.plan.RawInput)
		return err
	}
	in := r.plan.Input
	if r.plan.Passthrough {
		return copyRaw(w, in)
	}
	transform := r.plan.Transform
	if transform == nil {
		transform = Raw
	}
	var err error
	for in.Scan() {
		if err = transform(w, in.Record()); err != nil {
			break
		}
	}
	if e := in.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

func copyRaw(w io.Writer, in stream.Iterator) error {
	src, ok := in.(stream.RawSource)
	if !ok {
		in.Close() // nolint: errcheck
		return errors.E(errors.Invalid, fmt.Sprintf("pipeline: %T has no raw bytes", in))
	}
	raw, err := src.Raw()
	if err == nil {
		_, err = io.Copy(w, raw)
	}
	if e := in.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// feed writes the input into the first stage.
func (r *run) feed(w *os.File) {
	defer r.wg.Done()
	bw := bufio.NewWriterSize(w, 1<<20)
	err := r.writeInput(bw)
	if err == nil {
		err = bw.Flush()
	}
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	switch {
	case err == nil:
	case isBrokenPipe(err):
		log.Debug.Printf("pipeline %s [%s]: first stage closed its input early", r.plan.Name, r.id)
	default:
		r.errs.Set(err)
	}
}

func (r *run) filter(index int, f Filter, in, out *os.File) {
	defer r.wg.Done()
	var src io.Reader = strings.NewReader("")
	if in != nil {
		src = in
	}
	err := f(src, out)
	closeFiles(in, out)
	if err != nil && !isBrokenPipe(err) {
		r.errs.Set(r.toolError(index, err))
	}
}

// Wait implements stream.Process. It waits for every stage and goroutine
// of the run and returns the first failure in stage order.
func (r *run) Wait() error {
	r.waitOnce.Do(func() {
		r.waited = true
		var err error
		for _, p := range r.procs {
			e := p.cmd.Wait()
			if e == nil || err != nil || atomic.LoadInt32(&r.killed) != 0 {
				continue
			}
			te := r.toolError(p.index, e)
			if ee, ok := e.(*exec.ExitError); ok {
				te.ExitCode = ee.ExitCode()
			}
			te.Stderr = p.tail.String()
			err = te
		}
		r.wg.Wait()
		if err == nil {
			err = r.errs.Err()
		}
		r.waitErr = err
		if err != nil {
			log.Error.Printf("pipeline %s [%s]: %v", r.plan.Name, r.id, err)
			r.failed = true
		} else {
			vlog.VI(1).Infof("pipeline %s [%s]: done", r.plan.Name, r.id)
		}
		r.removeTemps()
	})
	return r.waitErr
}

// Terminate implements stream.Process. It kills the process group of every
// stage; Wait then reports no exit status.
func (r *run) Terminate() {
	atomic.StoreInt32(&r.killed, 1)
	for _, p := range r.procs {
		if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil {
			log.Debug.Printf("pipeline %s [%s]: kill stage %d: %v", r.plan.Name, r.id, p.index, err)
		}
	}
}

// abort cleans up after a failed start.
func (r *run) abort() {
	r.failed = true
	if !r.waited {
		r.Terminate()
		r.Wait() // nolint: errcheck
	}
	if !r.inputTaken && r.plan.Input != nil {
		r.plan.Input.Close() // nolint: errcheck
	}
}

// removeTemps removes the files of the run. The temporary output survives
// a successful run; it belongs to the result stream.
func (r *run) removeTemps() {
	for _, path := range r.temps {
		if path == r.output && !r.failed {
			continue
		}
		r.remove(path)
	}
	r.temps = nil
}

func (r *run) remove(path string) {
	if err := file.Remove(r.ctx, path); err != nil && !errors.Is(errors.NotExist, err) {
		log.Error.Printf("pipeline %s [%s]: remove %s: %v", r.plan.Name, r.id, path, err)
	}
}
