// Package app collects the process-wide state (the one open Backend,
// the one transfer Engine, the active connector) into an Application
// value threaded through the front ends, so no subsystem is reached
// through a singleton.
//
// Application also owns startup sequencing: Open joins any in-flight
// handshake before starting a new one, so device selection is fully
// sequential.
package app

import (
	"fmt"
	"sync"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/config"
	"github.com/dagargo/elektroid/internal/connectors"
	_ "github.com/dagargo/elektroid/internal/connectors/microfreak"
	_ "github.com/dagargo/elektroid/internal/connectors/sds"
	"github.com/dagargo/elektroid/internal/connectors/system"
	_ "github.com/dagargo/elektroid/internal/connectors/volcasample"
	_ "github.com/dagargo/elektroid/internal/connectors/volcasample2"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/midiport"
	"github.com/dagargo/elektroid/internal/task"
	"github.com/dagargo/elektroid/internal/xerr"
)

// Application is the single owner of the at-most-one-open-backend
// rule. It is safe for concurrent use by the CLI/UI frontend
// and the Task Engine's worker.
type Application struct {
	mu sync.Mutex

	prefs   *config.Settings
	current *backend.Backend
	connName string

	// handshakeWG is joined by Open before starting a new handshake,
	// keeping device selection strictly sequential.
	handshakeWG sync.WaitGroup

	engine *task.Engine
}

// New builds an Application with the given preferences and an idle Task
// Engine (not yet started).
func New(prefs *config.Settings, asker task.OverwriteAsker, onStatus task.StatusFunc) *Application {
	a := &Application{prefs: prefs, engine: task.NewEngine(asker, onStatus)}
	a.engine.Start()
	return a
}

// Engine returns the Task Engine every upload/download is enqueued on.
func (a *Application) Engine() *task.Engine { return a.engine }

// Shutdown stops the Task Engine and closes the active backend, if any.
func (a *Application) Shutdown() {
	a.engine.Stop()
	a.handshakeWG.Wait()
	a.mu.Lock()
	b := a.current
	a.current = nil
	a.mu.Unlock()
	if b != nil {
		_ = b.Close()
	}
}

// ListDevices enumerates reachable MIDI devices plus the always-present
// local "system" pseudo-device, for the CLI's `ld` command.
func ListDevices() []midiport.Device {
	devices := append([]midiport.Device(nil), midiport.Devices()...)
	return append(devices, midiport.Device{Name: "system"})
}

// Open closes any currently-open backend, then opens deviceName: the
// literal "system" picks the local-filesystem pseudo-backend, anything
// else is looked up among the reachable MIDI ports and matched against
// the connector registry. connName, if non-empty, restricts
// matching to that one connector.
func (a *Application) Open(deviceName, connName string) error {
	a.handshakeWG.Wait() // sequential startup: join any in-flight handshake first

	a.mu.Lock()
	prev := a.current
	a.current = nil
	a.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	if deviceName == "system" {
		b := backend.OpenSystem()
		if err := system.Handshake(b); err != nil {
			return err
		}
		a.mu.Lock()
		a.current = b
		a.connName = "system"
		a.mu.Unlock()
		return nil
	}

	b, err := backend.Open(deviceName, 0)
	if err != nil {
		return err
	}

	a.handshakeWG.Add(1)
	defer a.handshakeWG.Done()

	stopOnConnect := a.prefs == nil || a.prefs.StopDeviceWhenConnecting
	if stopOnConnect {
		_ = b.Tx([]byte{0xfc})
	}
	b.RxDrain()

	name, err := connectors.Match(b, deviceName, connName)
	if err != nil {
		_ = b.Close()
		return err
	}

	a.mu.Lock()
	a.current = b
	a.connName = name
	a.mu.Unlock()
	return nil
}

// Close releases the active backend, if any.
func (a *Application) Close() error {
	a.mu.Lock()
	b := a.current
	a.current = nil
	a.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Close()
}

// Backend returns the currently open backend, or nil.
func (a *Application) Backend() *backend.Backend {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// ConnectorName returns the name of the connector that claimed the
// current backend.
func (a *Application) ConnectorName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connName
}

// Filesystems returns the filesystems installed on the active backend.
func (a *Application) Filesystems() ([]fsops.Ops, error) {
	b := a.Backend()
	if b == nil {
		return nil, xerr.New(xerr.KindNotConnected, "app.filesystems", xerr.ErrNotConnected)
	}
	return b.Filesystems(), nil
}

// SelectFilesystem resolves one installed filesystem by name (an
// exact, case-sensitive match against fsops.Ops.Name(), since the
// CLI path grammar names only the device, with no syntax of its own
// for fs selection). An empty name selects the first installed
// filesystem: the only one for devices that expose exactly one (SDS,
// Volca Sample, MicroFreak), the sample filesystem for Volca Sample 2.
func (a *Application) SelectFilesystem(name string) (fsops.Ops, error) {
	fss, err := a.Filesystems()
	if err != nil {
		return nil, err
	}
	if len(fss) == 0 {
		return nil, xerr.New(xerr.KindNotFound, "app.select_filesystem", fmt.Errorf("backend has no filesystems"))
	}
	if name == "" {
		return fss[0], nil
	}
	for _, fs := range fss {
		if fs.Name() == name {
			return fs, nil
		}
	}
	return nil, xerr.New(xerr.KindNotFound, "app.select_filesystem", fmt.Errorf("no filesystem named %q", name))
}
