package kinematics

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/skeleton"
)

// shardsPerWorker controls how finely frames are split across the pool.
const shardsPerWorker = 4

// Evaluator runs forward kinematics, sharding frames over a worker pool
// when it has more than one worker. Frames are independent, so shards
// write disjoint rows of the Pose. An Evaluator is safe for concurrent use.
type Evaluator struct {
	workers int
	pool    worker.DynamicWorkerPool
}

var (
	poolsMu sync.Mutex
	pools   = map[int]worker.DynamicWorkerPool{}
)

// sharedPool returns the process wide pool with n workers, creating it on
// first use. The pool's Stop does not reliably end its goroutines, so pools
// live for the life of the process and evaluators of the same size share one.
func sharedPool(n int) worker.DynamicWorkerPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[n]
	if !ok {
		p = worker.NewDynamicWorkerPool(n, 256, 1*time.Second)
		pools[n] = p
	}
	return p
}

// NewEvaluator creates an evaluator backed by workers goroutines. Fewer than
// two workers evaluates sequentially. Evaluators asking for the same number
// of workers run on the same pool.
func NewEvaluator(workers int) *Evaluator {
	e := &Evaluator{workers: workers}
	if workers > 1 {
		e.pool = sharedPool(workers)
	}
	return e
}

// Workers returns the pool size, or 1 for a sequential evaluator.
func (e *Evaluator) Workers() int {
	if e.pool == nil {
		return 1
	}
	return e.workers
}

// Forward validates the inputs and evaluates every frame. A rotation block
// whose shape disagrees with the skeleton or the root trajectory fails
// with a *skeleton.ShapeError before anything is computed.
func (e *Evaluator) Forward(s *skeleton.Skeleton, rots skeleton.Rotations, root []mgl64.Vec3, opts Options) (*Pose, error) {
	if err := check(s, rots, root); err != nil {
		return nil, err
	}
	start := time.Now()
	frames := len(root)
	pose := newPose(frames, s.Len(), opts.Transforms)

	if e.pool == nil || frames < 2 {
		evalRange(s, rots, root, pose, 0, frames)
		logDone(start, frames, s.Len(), 1)
		return pose, nil
	}

	shard := (frames + e.workers*shardsPerWorker - 1) / (e.workers * shardsPerWorker)
	var wg sync.WaitGroup
	taskID := 0
	for lo := 0; lo < frames; lo += shard {
		hi := min(lo+shard, frames)
		wg.Add(1)
		id := taskID
		taskID++
		e.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				evalRange(s, rots, root, pose, lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
	logDone(start, frames, s.Len(), e.workers)
	return pose, nil
}
