package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/segmentio/ksuid"

	"kernelchk/internal/diagnostics"
	"kernelchk/internal/kernel/env"
)

// Pipeline runs a declaration stream through the two-stage worker design:
// one serial compile worker walking the already-parsed declaration slice
// in order and performing environment inserts, and N checker workers
// draining a bounded check queue. There is no compile queue: parsing
// finishes before Run starts.
type Pipeline struct {
	env     *env.Env
	threads int
	runID   string
}

// New builds a pipeline over e. threads 0 or 1 forces fully serial
// execution; otherwise threads checker workers run concurrently.
func New(e *env.Env, threads int) *Pipeline {
	return &Pipeline{
		env:     e,
		threads: threads,
		runID:   ksuid.New().String(),
	}
}

// RunID identifies this run in log output.
func (p *Pipeline) RunID() string { return p.runID }

// Run consumes the declaration stream to completion, returning how many
// declarations were checked. The first error aborts the run: remaining
// queued work is drained unprocessed, and the error is returned with its
// declaration's location attached.
func (p *Pipeline) Run(decls []Declaration) (int, error) {
	if p.threads <= 1 {
		return p.runSerial(decls)
	}
	return p.runParallel(decls)
}

func (p *Pipeline) runSerial(decls []Declaration) (int, error) {
	log := diagnostics.Logger("compile")
	for _, d := range decls {
		log.Debugf("run %s: declaration #%d (%s)", p.runID, d.Index, d.Name)
		if err := AddDeclaration(p.env, d); err != nil {
			return d.Index, err
		}
	}
	return len(decls), nil
}

// runErr records the first failure seen by any worker; everything after it
// is drained without processing so the queues always empty out.
type runErr struct {
	once    sync.Once
	err     error
	aborted atomic.Bool
}

func (r *runErr) set(err error) {
	r.once.Do(func() {
		r.err = err
		r.aborted.Store(true)
	})
}

func (p *Pipeline) runParallel(decls []Declaration) (int, error) {
	compileLog := diagnostics.Logger("compile")
	checkLog := diagnostics.Logger("check")

	checkQueue := make(chan *Compiled, 256)
	var failure runErr

	// The compile worker is the only writer of the environment; it sees
	// declarations in stream order and hands each compiled record to the
	// checkers, who only ever read.
	var compileWG sync.WaitGroup
	compileWG.Add(1)
	go func() {
		defer compileWG.Done()
		defer close(checkQueue)
		for _, d := range decls {
			if failure.aborted.Load() {
				return
			}
			compileLog.Debugf("run %s: compiling #%d (%s)", p.runID, d.Index, d.Name)
			cm, err := Compile(p.env, d)
			if err != nil {
				failure.set(err)
				return
			}
			checkQueue <- cm
		}
	}()

	var checkWG sync.WaitGroup
	for w := 0; w < p.threads; w++ {
		checkWG.Add(1)
		workerID := w
		go func() {
			defer checkWG.Done()
			for cm := range checkQueue {
				if failure.aborted.Load() {
					continue
				}
				checkLog.Debugf("run %s: worker %d checking #%d (%s)", p.runID, workerID, cm.decl.Index, cm.decl.Name)
				if err := cm.CheckOnly(p.env); err != nil {
					failure.set(err)
				}
			}
		}()
	}

	compileWG.Wait()
	checkWG.Wait()

	if failure.err != nil {
		return 0, failure.err
	}
	return len(decls), nil
}
