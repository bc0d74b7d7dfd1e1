package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dagargo/elektroid/internal/fsops"
)

// fakeOps is a minimal in-memory fsops.Ops used to exercise the Engine
// without a real connector.
type fakeOps struct {
	fsops.Base
	mu      sync.Mutex
	files   map[string][]byte
	opts    fsops.Options
	uploads []string
}

func newFakeOps(opts fsops.Options) *fakeOps {
	return &fakeOps{files: map[string][]byte{}, opts: opts}
}

func (f *fakeOps) ID() int32 { return 1 }
func (f *fakeOps) Name() string { return "fake" }
func (f *fakeOps) Options() fsops.Options { return f.opts }
func (f *fakeOps) MaxNameLen() int { return 255 }
func (f *fakeOps) TypeExt() string { return "bin" }
func (f *fakeOps) Extensions() []string { return []string{"bin"} }
func (f *fakeOps) Slot(id int32) string { return "" }

func (f *fakeOps) Load(ctx context.Context, path string, ctrl *fsops.Control, opts fsops.LoadOptions) (fsops.IData, error) {
	return fsops.IData{Content: []byte("payload:" + path)}, nil
}

func (f *fakeOps) Upload(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data.Content
	f.uploads = append(f.uploads, path)
	return nil
}

func (f *fakeOps) FileExists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok, nil
}

func (f *fakeOps) Mkdir(ctx context.Context, path string) error { return nil }

func (f *fakeOps) GetUploadPath(dstDir, srcPath string, content []byte) (string, error) {
	return dstDir + "/resolved", nil
}

func (f *fakeOps) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	return fsops.IData{Content: []byte("remote:" + path)}, nil
}

func (f *fakeOps) Save(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data.Content
	return nil
}

func (f *fakeOps) GetDownloadPath(dstDir, srcPath string) (string, error) {
	return dstDir + "/saved", nil
}

func waitStatus(t *testing.T, tk *Task, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tk.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task did not reach status %v, got %v (err=%v)", want, tk.Status(), tk.Err())
}

func TestEngineUploadCompletesSlotStorage(t *testing.T) {
	fs := newFakeOps(fsops.SlotStorage)
	e := NewEngine(nil, nil)
	e.Start()
	defer e.Stop()

	tk := NewTask(Upload, fs, fs, "/local/a.bin", "17", 1, ModeAsk)
	e.Enqueue(tk)
	waitStatus(t, tk, CompletedOK)

	if string(fs.files["17"]) != "payload:/local/a.bin" {
		t.Errorf("unexpected uploaded content: %q", fs.files["17"])
	}
}

func TestEngineUploadResolvesPathWhenNotSlotStorage(t *testing.T) {
	fs := newFakeOps(0)
	e := NewEngine(nil, nil)
	e.Start()
	defer e.Stop()

	tk := NewTask(Upload, fs, fs, "/local/a.bin", "/remote/dir/a.bin", 1, ModeAsk)
	e.Enqueue(tk)
	waitStatus(t, tk, CompletedOK)

	if _, ok := fs.files["/remote/dir/resolved"]; !ok {
		t.Errorf("expected upload at resolved path, got %v", fs.uploads)
	}
}

func TestEngineFIFOOrder(t *testing.T) {
	fs := newFakeOps(fsops.SlotStorage)

	var order []string
	var mu sync.Mutex
	done := make(chan struct{}, 3)
	onStatus := func(tk *Task) {
		if tk.Status() == CompletedOK {
			mu.Lock()
			order = append(order, tk.Dst)
			mu.Unlock()
			done <- struct{}{}
		}
	}
	e := NewEngine(nil, onStatus)
	e.Start()
	defer e.Stop()

	for _, id := range []string{"1", "2", "3"} {
		e.Enqueue(NewTask(Upload, fs, fs, "/local/x", id, 1, ModeReplace))
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "1" || order[1] != "2" || order[2] != "3" {
		t.Errorf("expected FIFO order [1 2 3], got %v", order)
	}
}

func TestApplyToAllAffectsOnlySameBatch(t *testing.T) {
	fs := newFakeOps(fsops.SlotStorage)
	e := NewEngine(nil, nil)

	// Keep the worker from draining the queue so Pending() reflects the
	// still-queued tasks while we exercise ApplyToAllInBatch.
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	a1 := NewTask(Upload, fs, fs, "/x", "1", 100, ModeAsk)
	a2 := NewTask(Upload, fs, fs, "/x", "2", 100, ModeAsk)
	b1 := NewTask(Upload, fs, fs, "/x", "3", 200, ModeAsk)
	e.Enqueue(a1)
	e.Enqueue(a2)
	e.Enqueue(b1)

	e.ApplyToAllInBatch(100, ModeReplace)

	if a1.Mode() != ModeReplace || a2.Mode() != ModeReplace {
		t.Error("batch 100 tasks should have been switched to ModeReplace")
	}
	if b1.Mode() != ModeAsk {
		t.Error("batch 200 task should be untouched")
	}
}

func TestOverwriteAskerAppliesToAllRemainingQueuedTasks(t *testing.T) {
	fs := newFakeOps(fsops.SlotStorage)
	fs.files["2"] = []byte("existing")

	asked := 0
	asker := func(tk *Task) OverwriteDecision {
		asked++
		return OverwriteDecision{Mode: ModeReplace, ApplyToAll: true}
	}

	var statuses []Status
	var mu sync.Mutex
	done := make(chan struct{}, 2)
	e := NewEngine(asker, func(tk *Task) {
		if s := tk.Status(); s == CompletedOK || s == CompletedError || s == Canceled {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
			done <- struct{}{}
		}
	})
	e.Start()
	defer e.Stop()

	t1 := NewTask(Upload, fs, fs, "/x", "2", 1, ModeAsk)
	t2 := NewTask(Upload, fs, fs, "/x", "4", 1, ModeAsk)
	e.Enqueue(t1)
	e.Enqueue(t2)
	<-done
	<-done

	if asked != 1 {
		t.Errorf("expected exactly one dialogue pop (apply-to-all), got %d", asked)
	}
	if t2.Mode() != ModeReplace {
		t.Error("second task should have inherited ModeReplace via apply-to-all")
	}
}

func TestEngineDownloadResolvesPath(t *testing.T) {
	fs := newFakeOps(0)
	e := NewEngine(nil, nil)
	e.Start()
	defer e.Stop()

	tk := NewTask(Download, fs, fs, "17", t.TempDir(), 1, ModeAsk)
	e.Enqueue(tk)
	waitStatus(t, tk, CompletedOK)

	if string(fs.files[tk.Dst+"/saved"]) != "remote:17" {
		t.Errorf("unexpected saved content: %q", fs.files[tk.Dst+"/saved"])
	}
}

func TestCancelBeforeRunHasNoEffect(t *testing.T) {
	fs := newFakeOps(fsops.SlotStorage)
	e := NewEngine(nil, nil)

	tk := NewTask(Upload, fs, fs, "/x", "1", 1, ModeReplace)
	tk.Cancel() // no-op: control not attached yet
	e.Start()
	defer e.Stop()
	e.Enqueue(tk)
	waitStatus(t, tk, CompletedOK) // cancel before attach has no effect, matching "observed at next yield"
}
