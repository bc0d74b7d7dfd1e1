package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dagargo/elektroid/internal/app"
	"github.com/dagargo/elektroid/internal/config"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/task"
)

// errDifferentDevices is returned by commands that only operate within
// a single device's filesystem (mv) when given two device-qualified
// paths naming different devices.
var errDifferentDevices = errors.New("source and destination must name the same device")

// alwaysReplace is the CLI's overwrite policy: there is no UI thread to
// pop a batch-scoped overwrite dialogue, so an existing
// destination is always replaced outright.
var alwaysReplace task.OverwriteAsker = func(t *task.Task) task.OverwriteDecision {
	return task.OverwriteDecision{Mode: task.ModeReplace}
}

// waitForTask blocks until t leaves the Queued/Running states, polling
// at a short fixed interval since the Task Engine only exposes status
// via Task.Status(), not a completion channel.
func waitForTask(t *task.Task) error {
	for {
		switch t.Status() {
		case task.CompletedOK:
			return nil
		case task.CompletedError, task.Canceled:
			return t.Err()
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// splitDeviceArg splits a "<device>[/path]" CLI argument into the
// device name and the remaining path, per the `ls <device>[/path]`
// argument grammar. The device name is everything before the first "/".
func splitDeviceArg(arg string) (device, path string) {
	i := strings.IndexByte(arg, '/')
	if i < 0 {
		return arg, "/"
	}
	path = arg[i:]
	if path == "" {
		path = "/"
	}
	return arg[:i], path
}

// openAppOn loads the preferences store, opens deviceName, and resolves
// its default filesystem, returning everything a command needs plus a
// cleanup func.
func openAppOn(deviceName string) (a *app.Application, fs fsops.Ops, cleanup func(), err error) {
	prefs, err := config.Get()
	if err != nil {
		return nil, nil, nil, err
	}
	// The CLI is non-interactive: any overwrite is always replaced
	// outright, since there is no UI thread to pop the batch-scoped
	// dialogue a GUI front end would show.
	a = app.New(prefs, alwaysReplace, nil)
	cleanup = func() { a.Shutdown() }

	if err := a.Open(deviceName, ""); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	fs, err = a.SelectFilesystem("")
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return a, fs, cleanup, nil
}

func formatItem(it fsops.Item) string {
	kind := "f"
	if it.Kind == fsops.KindDir {
		kind = "d"
	}
	size := "-"
	if it.Size >= 0 {
		size = fmt.Sprintf("%d", it.Size)
	}
	slot := "-"
	if it.ID >= 0 {
		slot = fmt.Sprintf("%d", it.ID)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", kind, size, slot, it.Name)
}
