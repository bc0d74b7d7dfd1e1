// Package task implements the transfer engine: a FIFO queue of
// upload/download tasks drained by a single worker, with a batch-scoped
// overwrite policy and per-task cancellation/progress.
package task

import (
	"context"
	"errors"
	"sync"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/recovery"
	"github.com/dagargo/elektroid/internal/xerr"
)

// Type distinguishes the two task shapes.
type Type int

const (
	Upload Type = iota
	Download
)

func (t Type) String() string {
	if t == Download {
		return "download"
	}
	return "upload"
}

// OverwriteMode is the policy applied when the destination of an upload
// or download already exists.
type OverwriteMode int

const (
	ModeAsk OverwriteMode = iota
	ModeReplace
	ModeSkip
)

// Status is a task's lifecycle state.
type Status int

const (
	Queued Status = iota
	Running
	CompletedOK
	CompletedError
	Canceled
)

// Progress reports [0,1] completion of the current stage of a staged
// operation, plus which stage (part) out of how many (parts).
type Progress struct {
	Part     int
	Parts    int
	Fraction float64
}

// Control threads cancellation and staged progress reporting into the
// fsops calls a running task makes, as an explicit token derived from
// a context.Context.
type Control struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	parts int
	part  int

	onProgress func(Progress)
}

// NewControl creates a Control with the given number of logical stages
// (parts). onProgress, if non-nil, is invoked on every FsOps progress
// callback with the currently active part.
func NewControl(parent context.Context, parts int, onProgress func(Progress)) *Control {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	if parts < 1 {
		parts = 1
	}
	return &Control{ctx: ctx, cancel: cancel, parts: parts, onProgress: onProgress}
}

// Cancel requests the running task stop at its next yield point.
func (c *Control) Cancel() { c.cancel() }

// Canceled reports whether Cancel has been called (or the parent context
// was canceled).
func (c *Control) Canceled() bool { return c.ctx.Err() != nil }

// Context returns the cancellation-bearing context passed to every FsOps
// method the task invokes.
func (c *Control) Context() context.Context { return c.ctx }

// SetPart advances the active stage; subsequent progress reports are
// attributed to it.
func (c *Control) SetPart(part int) {
	c.mu.Lock()
	c.part = part
	c.mu.Unlock()
}

// FsopsControl adapts this Control into the fsops.Control every Ops
// method expects, bridging its single [0,1] fraction to this Control's
// (part, parts) pair.
func (c *Control) FsopsControl() *fsops.Control {
	return &fsops.Control{
		Ctx: c.ctx,
		Progress: func(fraction float64) {
			c.mu.Lock()
			part, parts := c.part, c.parts
			c.mu.Unlock()
			if c.onProgress != nil {
				c.onProgress(Progress{Part: part, Parts: parts, Fraction: fraction})
			}
		},
	}
}

// Task is one queued upload or download unit. An upload
// reads Src through SrcFS (the local system connector) and writes Dst
// through DstFS (the device connector); a download is the mirror: Src
// is read through SrcFS (the device connector) and Dst is written
// through DstFS (the local system connector). A connector only ever
// appears on the side it actually implements — Load/Save belong to the
// system connector, Download/Upload to device connectors — so the two
// are kept distinct rather than forced into one fsops.Ops.
type Task struct {
	mu sync.Mutex

	Type    Type
	Src     string
	Dst     string
	SrcFS   fsops.Ops
	DstFS   fsops.Ops
	BatchID int64
	mode    OverwriteMode
	status  Status
	err     error
	control *Control
}

// NewTask builds a queued task. src/dst are opaque paths: device paths
// for the remote side, local filesystem paths for the other.
func NewTask(typ Type, srcFS, dstFS fsops.Ops, src, dst string, batchID int64, mode OverwriteMode) *Task {
	return &Task{Type: typ, SrcFS: srcFS, DstFS: dstFS, Src: src, Dst: dst, BatchID: batchID, mode: mode, status: Queued}
}

func (t *Task) Mode() OverwriteMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// SetMode changes this task's overwrite policy; used by the "apply to
// all" path of the overwrite dialogue.
func (t *Task) SetMode(m OverwriteMode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) setStatus(s Status, err error) {
	t.mu.Lock()
	t.status = s
	t.err = err
	t.mu.Unlock()
}

// Cancel requests the task stop at its next yield point. A no-op if the
// task has not started running yet or has already finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	ctrl := t.control
	t.mu.Unlock()
	if ctrl != nil {
		ctrl.Cancel()
	}
}

func (t *Task) attachControl(c *Control) {
	t.mu.Lock()
	t.control = c
	t.mu.Unlock()
}

// OverwriteDecision is the outcome of an overwrite dialogue for one task.
type OverwriteDecision struct {
	Mode       OverwriteMode // ModeReplace or ModeSkip
	ApplyToAll bool
}

// OverwriteAsker pops a batch-scoped overwrite dialogue for t. It must
// not be called when t.Mode() != ModeAsk.
type OverwriteAsker func(t *Task) OverwriteDecision

// StatusFunc is notified every time a task's status changes.
type StatusFunc func(t *Task)

// Engine is the single-worker transfer queue: the enqueueing caller
// only ever touches the queue's list structure through Enqueue/Cancel;
// exactly one goroutine (Start's worker) ever calls into an fsops.Ops.
type Engine struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []*Task

	asker    OverwriteAsker
	onStatus StatusFunc

	stopped bool
	wg      sync.WaitGroup
}

// NewEngine builds an Engine. asker may be nil; with a nil asker, a
// ModeAsk task whose destination already exists is replaced without
// asking.
func NewEngine(asker OverwriteAsker, onStatus StatusFunc) *Engine {
	e := &Engine{asker: asker, onStatus: onStatus}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start launches the single worker goroutine. Safe to call once per
// Engine.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Stop drains no further tasks after the current one finishes and waits
// for the worker to exit. Queued-but-not-started tasks remain queued
// (Pending reports them); call Enqueue again after a future Start if the
// application is resumed, or discard the Engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

// Enqueue appends t to the FIFO. Task execution is FIFO by enqueue
// order within a batch, and overall across batches.
func (e *Engine) Enqueue(t *Task) {
	e.mu.Lock()
	e.queue = append(e.queue, t)
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Pending returns the tasks still queued (not yet popped by the
// worker), in FIFO order.
func (e *Engine) Pending() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Task(nil), e.queue...)
}

// ApplyToAllInBatch sets mode on every still-queued task sharing
// batchID, and on no other task.
func (e *Engine) ApplyToAllInBatch(batchID int64, mode OverwriteMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.queue {
		if t.BatchID == batchID {
			t.SetMode(mode)
		}
	}
}

func (e *Engine) run() {
	defer e.wg.Done()
	defer recovery.HandlePanic()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopped {
			e.cond.Wait()
		}
		if e.stopped {
			e.mu.Unlock()
			return
		}
		t := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.execute(t)
	}
}

func (e *Engine) execute(t *Task) {
	t.setStatus(Running, nil)
	if e.onStatus != nil {
		e.onStatus(t)
	}

	var err error
	if t.Type == Upload {
		err = e.upload(t)
	} else {
		err = e.download(t)
	}

	switch {
	case err == nil:
		t.setStatus(CompletedOK, nil)
	case xerr.Is(err, xerr.KindCanceled):
		t.setStatus(Canceled, err)
	default:
		t.setStatus(CompletedError, err)
	}
	if e.onStatus != nil {
		e.onStatus(t)
	}
}

// resolveOverwrite consults t.Mode(), popping the asker for ModeAsk, and
// applies "apply to all" across the rest of the batch if requested.
func (e *Engine) resolveOverwrite(t *Task) (proceed bool, err error) {
	mode := t.Mode()
	if mode == ModeReplace {
		return true, nil
	}
	if mode == ModeSkip {
		return false, xerr.New(xerr.KindCanceled, "task.overwrite", xerr.ErrCanceled)
	}
	if e.asker == nil {
		return true, nil
	}
	decision := e.asker(t)
	if decision.ApplyToAll {
		e.ApplyToAllInBatch(t.BatchID, decision.Mode)
	}
	t.SetMode(decision.Mode)
	if decision.Mode == ModeSkip {
		return false, xerr.New(xerr.KindCanceled, "task.overwrite", xerr.ErrCanceled)
	}
	return true, nil
}

func isUnsupported(err error) bool {
	return errors.Is(err, fsops.ErrUnsupported)
}
