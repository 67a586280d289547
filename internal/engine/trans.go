package engine

// Trans is an ordered, append-only batch of jobs.
//
// A transaction is opened and filled by the control path and committed
// once. After Commit the realtime side owns it until every job has been
// applied; it then travels back to the control side, where CollectGarbage
// runs the jobs' free callbacks. An uncommitted transaction can be abandoned
// with Dismiss; a committed one cannot be cancelled.
//
// Trans is not safe for concurrent use: it belongs to a single control-path
// caller until committed.
type Trans struct {
	engine    *Engine
	jobs      []*Job
	stamp     int64
	committed bool
	dismissed bool
}

// Open returns an empty transaction for this engine.
func (e *Engine) Open() *Trans {
	return &Trans{engine: e, jobs: make([]*Job, 0, 8)}
}

// Add appends jobs in order.
// Adding to a committed or dismissed transaction is a programming error.
func (t *Trans) Add(jobs ...*Job) {
	if t.committed || t.dismissed {
		assertf("add", nil, "transaction already %s", t.state())
	}
	for _, j := range jobs {
		if j == nil || j.Module == nil {
			assertf("add", nil, "job without target module")
		}
		if j.Module.engine != t.engine || (j.Src != nil && j.Src.engine != t.engine) {
			assertf("add", j.Module, "module belongs to a different engine")
		}
		t.jobs = append(t.jobs, j)
	}
}

// Len returns the number of queued jobs.
func (t *Trans) Len() int { return len(t.jobs) }

// Jobs returns the jobs in order. The slice must not be modified.
func (t *Trans) Jobs() []*Job { return t.jobs }

// Stamp returns the commit stamp, or 0 before Commit.
func (t *Trans) Stamp() int64 { return t.stamp }

// Commit hands the transaction to the realtime side and returns the stamp
// identifying when it becomes visible: CollectGarbage reports it through
// AppliedStamp once every job has run.
//
// An empty transaction is not enqueued; Commit returns the current stamp.
func (t *Trans) Commit() int64 {
	if t.committed || t.dismissed {
		assertf("commit", nil, "transaction already %s", t.state())
	}
	t.committed = true
	if len(t.jobs) == 0 {
		t.stamp = t.engine.clock.Current()
		return t.stamp
	}
	t.stamp = t.engine.clock.Next()
	t.engine.pending.Push(t)
	return t.stamp
}

// Dismiss abandons an uncommitted transaction. Modules that were about to
// be integrated are freed through their class; free callbacks of other jobs
// do not run since their jobs never did.
func (t *Trans) Dismiss() {
	if t.committed || t.dismissed {
		assertf("dismiss", nil, "transaction already %s", t.state())
	}
	t.dismissed = true
	for _, j := range t.jobs {
		if j.Kind == JobIntegrate && j.Module.class.Free != nil {
			j.Module.class.Free(j.Module.User, j.Module.class)
		}
	}
	t.jobs = nil
}

func (t *Trans) state() string {
	if t.committed {
		return "committed"
	}
	return "dismissed"
}
