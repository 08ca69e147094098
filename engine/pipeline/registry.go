package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Warmable is any pipeline wrapper whose core can be precompiled ahead of
// first use. Both ComputePipeline and RenderPipeline satisfy it.
type Warmable interface {
	// Label returns the pipeline's label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Source forces resolution and compilation, returning the resolved
	// shader source.
	//
	// Returns:
	//   - string: the resolved shader source
	//   - error: an error if resolution or compilation fails
	Source() (string, error)
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu        sync.Mutex
	pipelines []Warmable

	// warmupPool manages a bounded set of reusable goroutines for parallel
	// pipeline warmup. Each registered pipeline is compiled by exactly one
	// task, so no core is ever resolved from two goroutines at once.
	warmupPool worker.DynamicWorkerPool
}

// Registry collects pipelines so their cores can be precompiled in one
// concurrent warmup pass instead of paying compilation cost on first
// dispatch.
type Registry interface {
	// Register adds a pipeline to the registry. Registering the same
	// wrapper twice warms it only once.
	//
	// Parameters:
	//   - p: the pipeline to register
	Register(p Warmable)

	// Warmup compiles every registered pipeline on the worker pool and
	// blocks until all have finished. Failures are logged per pipeline;
	// the first error encountered is returned after all tasks complete.
	//
	// Returns:
	//   - error: the first compilation error, or nil
	Warmup() error
}

var _ Registry = &registry{}

// NewRegistry creates a pipeline registry whose warmup runs on the given
// number of workers.
//
// Parameters:
//   - workers: the maximum number of concurrent warmup workers
//
// Returns:
//   - Registry: the registry
func NewRegistry(workers int) Registry {
	if workers < 1 {
		workers = 1
	}
	return &registry{
		warmupPool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

func (r *registry) Register(p Warmable) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.pipelines {
		if existing == p {
			return
		}
	}
	r.pipelines = append(r.pipelines, p)
}

func (r *registry) Warmup() error {
	r.mu.Lock()
	pipelines := make([]Warmable, len(r.pipelines))
	copy(pipelines, r.pipelines)
	r.mu.Unlock()

	// A WaitGroup provides the completion barrier since pool.Wait blocks
	// until workers idle-exit, which is unsuitable here.
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	start := time.Now()
	for i, p := range pipelines {
		wg.Add(1)
		pCap := p
		r.warmupPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				if _, err := pCap.Source(); err != nil {
					log.Printf("pipeline: warmup of %q failed: %v", pCap.Label(), err)
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	log.Printf("pipeline: warmed %d pipelines in %s", len(pipelines), time.Since(start))
	return firstErr
}
