// Package system implements the local-filesystem connector: the
// device that always matches (the host filesystem itself),
// exposed as a family of sample variants distinguished only by the
// rate/depth/channel combination their Load method resamples/mixes
// down to.
package system

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/connectors"
	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/sample"
	"github.com/dagargo/elektroid/internal/xerr"
	"golang.org/x/sys/unix"
)

func init() {
	connectors.Register(connectors.Connector{
		Name:      "system",
		Standard:  false,
		Handshake: Handshake,
	})
}

// Variant names a sample-conversion target: rate in Hz, bit depth (0
// selects float32), channel count, and whether Load converts to it or
// Ops is a passthrough (id 0, "raw files").
type Variant struct {
	ID       int32
	Name     string
	Rate     int
	Depth    int
	Channels int
	Raw      bool
}

// variants is the fixed table of local filesystem flavours: one raw
// passthrough plus the converted sample variants.
var variants = []Variant{
	{ID: 0, Name: "System", Raw: true},
	{ID: 1, Name: "48000 Hz 16 bit stereo", Rate: 48000, Depth: 16, Channels: 2},
	{ID: 2, Name: "48000 Hz 16 bit mono", Rate: 48000, Depth: 16, Channels: 1},
	{ID: 3, Name: "44100 Hz 16 bit stereo", Rate: 44100, Depth: 16, Channels: 2},
	{ID: 4, Name: "44100 Hz 16 bit mono", Rate: 44100, Depth: 16, Channels: 1},
	{ID: 5, Name: "44100 Hz 24 bit stereo", Rate: 44100, Depth: 24, Channels: 2},
	{ID: 6, Name: "44100 Hz 24 bit mono", Rate: 44100, Depth: 24, Channels: 1},
	{ID: 7, Name: "44100 Hz 8 bit stereo", Rate: 44100, Depth: 8, Channels: 2},
	{ID: 8, Name: "44100 Hz 8 bit mono", Rate: 44100, Depth: 8, Channels: 1},
	{ID: 9, Name: "32000 Hz 16 bit mono", Rate: 32000, Depth: 16, Channels: 1},
}

// Handshake always succeeds: the local filesystem is always present.
// This connector is only ever selected for the synthetic "system"
// backend device, never for a MIDI device.
func Handshake(b *backend.Backend) error {
	fss := make([]fsops.Ops, len(variants))
	for i, v := range variants {
		fss[i] = &Ops{variant: v}
	}
	b.SetFilesystems(fss)
	b.SetDescription("System")
	b.SetStorageStatsFunc(func(path string) (backend.StorageStats, error) {
		s, err := GetStorageStats(path)
		return backend.StorageStats(s), err
	})
	return nil
}

// Ops implements fsops.Ops over the local filesystem, converting
// sample payloads to its Variant on Load.
type Ops struct {
	fsops.Base
	variant Variant
}

// NewRawOps returns the raw (passthrough, id 0) local filesystem
// variant, usable by callers that need local Load/Save/Download/Upload
// without opening the "system" pseudo-device as the active backend —
// only one backend may be open at a time, and a CLI transfer between a
// device and local disk needs both sides live at once.
func NewRawOps() fsops.Ops {
	return &Ops{variant: variants[0]}
}

func (o *Ops) ID() int32 { return o.variant.ID }
func (o *Ops) Name() string { return o.variant.Name }
func (o *Ops) Options() fsops.Options {
	opts := fsops.SortByName | fsops.AllowSearch
	if !o.variant.Raw {
		opts |= fsops.SampleEditor | fsops.AudioLink
		if o.variant.Channels == 1 {
			opts |= fsops.Mono
		} else {
			opts |= fsops.Stereo
		}
	}
	return opts
}
func (o *Ops) MaxNameLen() int { return 255 }
func (o *Ops) TypeExt() string { return "" }
func (o *Ops) Extensions() []string { return sample.Extensions() }

func (o *Ops) ReadDir(ctx context.Context, path string, extensions []string) (fsops.ItemIterator, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, xerr.New(xerr.KindWire, "system.readdir", err)
	}
	var items []fsops.Item
	for _, e := range entries {
		name := e.Name()
		if len(name) > 0 && name[0] == '.' {
			continue
		}
		if !e.IsDir() && len(extensions) > 0 && !hasAnyExt(name, extensions) {
			continue
		}
		info, err := e.Info()
		size := int64(-1)
		if err == nil {
			size = info.Size()
		}
		kind := fsops.KindFile
		if e.IsDir() {
			kind = fsops.KindDir
			size = -1
		}
		items = append(items, fsops.Item{Name: name, Kind: kind, Size: size, ID: -1})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return fsops.NewSliceIterator(items), nil
}

func hasAnyExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (o *Ops) Download(ctx context.Context, path string, ctrl *fsops.Control) (fsops.IData, error) {
	ctrl.Report(0)
	content, err := os.ReadFile(path)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "system.download", err)
	}
	ctrl.Report(1)
	return fsops.IData{Content: content, Name: filepath.Base(path)}, nil
}

func (o *Ops) Upload(ctx context.Context, dstPath string, data fsops.IData, ctrl *fsops.Control) error {
	ctrl.Report(0)
	if err := os.WriteFile(dstPath, data.Content, 0o644); err != nil {
		return xerr.New(xerr.KindWire, "system.upload", err)
	}
	ctrl.Report(1)
	return nil
}

// Load reads a WAV file and, unless this is the raw (id 0) variant,
// resamples/mixes it down to the variant's rate/depth/channel target
// via internal/sample.
func (o *Ops) Load(ctx context.Context, path string, ctrl *fsops.Control, opts fsops.LoadOptions) (fsops.IData, error) {
	f, err := os.Open(path)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "system.load", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return fsops.IData{}, xerr.New(xerr.KindWire, "system.load", err)
	}
	snd, err := sample.DecodeWAV(raw, opts.Tags)
	if err != nil {
		return fsops.IData{}, err
	}
	if !o.variant.Raw {
		snd, err = sample.Convert(snd, o.variant.Rate, o.variant.Channels, o.variant.Depth, ctrl)
		if err != nil {
			return fsops.IData{}, err
		}
	}
	content, info := sample.EncodeWAV(snd)
	return fsops.IData{Content: content, Info: info, Name: filepath.Base(path)}, nil
}

func (o *Ops) Save(ctx context.Context, path string, data fsops.IData, ctrl *fsops.Control) error {
	return os.WriteFile(path, data.Content, 0o644)
}

func (o *Ops) Rename(ctx context.Context, oldPath, newName string) error {
	newPath := filepath.Join(filepath.Dir(oldPath), newName)
	return os.Rename(oldPath, newPath)
}

func (o *Ops) Delete(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

func (o *Ops) Move(ctx context.Context, srcPath, dstPath string) error {
	return os.Rename(srcPath, dstPath)
}

func (o *Ops) Copy(ctx context.Context, srcPath, dstPath string) error {
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return os.WriteFile(dstPath, content, 0o644)
}

func (o *Ops) Mkdir(ctx context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

func (o *Ops) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (o *Ops) GetUploadPath(dstDir, srcPath string, content []byte) (string, error) {
	return filepath.Join(dstDir, filepath.Base(srcPath)), nil
}

func (o *Ops) GetDownloadPath(dstDir, srcPath string) (string, error) {
	return filepath.Join(dstDir, filepath.Base(srcPath)), nil
}

// StorageStats reports free/total bytes for the filesystem path
// resolves under. Linux-only; the label is the cleaned path rather
// than the mtab device name, since golang.org/x/sys/unix exposes
// Statfs directly but not mtab parsing.
type StorageStats struct {
	Name  string
	Free  uint64
	Total uint64
}

func GetStorageStats(path string) (StorageStats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return StorageStats{}, xerr.New(xerr.KindWire, "system.get_storage_stats", err)
	}
	return StorageStats{
		Name:  filepath.Clean(path),
		Free:  uint64(st.Bavail) * uint64(st.Bsize),
		Total: uint64(st.Blocks) * uint64(st.Bsize),
	}, nil
}
