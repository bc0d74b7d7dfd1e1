// Package fsops defines the uniform filesystem abstraction shared by
// every connector: the Item/SampleInfo/IData/ItemIterator data model,
// the Options bitset, and the Ops capability interface.
//
// Ops is a plain Go interface rather than a table of nullable function
// pointers: a connector that doesn't support an operation returns
// ErrUnsupported from it, and callers (internal/task, the CLI) check
// that before acting.
package fsops

import (
	"context"
	"fmt"

	"github.com/dagargo/elektroid/internal/xerr"
)

// ErrUnsupported is returned by an Ops method the connector does not
// implement for its filesystem.
var ErrUnsupported = xerr.ErrUnsupported

// Options is the per-filesystem capability/behaviour bitset.
type Options uint32

const (
	SlotStorage Options = 1 << iota
	SingleOp
	Mono
	Stereo
	SortByID
	SortByName
	AllowSearch
	SampleEditor
	AudioLink
	ShowIDColumn
	ShowSlotColumn
	ShowSizeColumn
	ShowInfoColumn
	ShowSampleColumns
)

func (o Options) Has(flag Options) bool { return o&flag != 0 }

// Kind distinguishes a directory entry's type.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Format enumerates the sample payload encodings. The private
// MicroFreak container tag is carried in the high bits of an int32 so it
// composes with the low-order PCM/float tags without a second field.
type Format int32

const (
	FormatPCM16 Format = iota
	FormatPCM24
	FormatPCM32
	FormatPCMU8
	FormatFloat32
	FormatDouble64
)

// MicroFreakTag, OR'd into a Format, marks MicroFreak's private sample
// container rather than a standard PCM/float layout.
const MicroFreakTag Format = 1 << 16

// LoopType mirrors the WAV smpl-chunk loop type field (0 = forward loop).
type LoopType uint32

// SampleInfo describes an audio payload.
type SampleInfo struct {
	Frames       int64
	Channels     int
	Rate         int
	Format       Format
	LoopStart    int64
	LoopEnd      int64
	LoopType     LoopType
	MIDINote     uint8
	MIDIFraction uint8
	Tempo        float64
	Tags         map[string]string // 4-byte ASCII keys only
}

// NormalizeLoop enforces the loop invariant loop_start <= loop_end <
// frames; out-of-range values are rewritten to (frames-1, frames-1, 0).
func (s *SampleInfo) NormalizeLoop() {
	if s.Frames <= 0 {
		s.LoopStart, s.LoopEnd, s.LoopType = 0, 0, 0
		return
	}
	if s.LoopStart < 0 || s.LoopEnd < s.LoopStart || s.LoopEnd >= s.Frames {
		s.LoopStart = s.Frames - 1
		s.LoopEnd = s.Frames - 1
		s.LoopType = 0
	}
}

// Item is one directory entry.
type Item struct {
	Name       string
	Kind       Kind
	Size       int64 // -1 = unknown
	ID         int32 // -1 = none
	Sample     *SampleInfo
	ObjectInfo string
}

// IData is an owned (bytes, typed info, optional name) triple, the
// universal data-carriage type. Ownership is exclusive by Go
// convention: a function that "consumes" an IData should not be handed a
// value another goroutine still reads concurrently.
type IData struct {
	Content []byte
	Info    *SampleInfo
	Name    string
}

// ItemIterator is a forward, one-shot cursor over a directory. Close
// must be called exactly once to release iterator state.
type ItemIterator interface {
	// Next advances and returns the next item, or ok=false at the end.
	Next() (item Item, ok bool, err error)
	Close()
}

// SliceIterator adapts a pre-computed []Item (the common case for
// connectors whose readdir already has the whole listing in hand) into an
// ItemIterator.
type SliceIterator struct {
	items []Item
	pos   int
}

func NewSliceIterator(items []Item) *SliceIterator {
	return &SliceIterator{items: items}
}

func (s *SliceIterator) Next() (Item, bool, error) {
	if s.pos >= len(s.items) {
		return Item{}, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

func (s *SliceIterator) Close() {}

// ProgressFunc reports [0,1] progress for the current stage of a
// long-running operation; see Control in internal/task.
type ProgressFunc func(fraction float64)

// Control threads a cancellation token and progress callback into
// every long operation.
type Control struct {
	Ctx      context.Context
	Progress ProgressFunc
}

func (c *Control) report(fraction float64) {
	if c != nil && c.Progress != nil {
		c.Progress(fraction)
	}
}

// Report invokes the control's progress callback, if any.
func (c *Control) Report(fraction float64) { c.report(fraction) }

// Canceled reports whether the control's context has been canceled.
func (c *Control) Canceled() bool {
	return c != nil && c.Ctx != nil && c.Ctx.Err() != nil
}

// LoadOptions parameterizes Ops.Load, e.g. whether to read WAV tags.
type LoadOptions struct {
	Tags bool
}

// Ops is the uniform operation set. A connector implements only the
// subset it supports; unimplemented operations return ErrUnsupported
// (wrapped with the operation name) rather than being absent from a
// vtable.
type Ops interface {
	ID() int32
	Name() string
	Options() Options
	MaxNameLen() int
	TypeExt() string
	Extensions() []string

	ReadDir(ctx context.Context, path string, extensions []string) (ItemIterator, error)

	Download(ctx context.Context, srcPath string, ctrl *Control) (IData, error)
	Upload(ctx context.Context, dstPath string, data IData, ctrl *Control) error

	Load(ctx context.Context, path string, ctrl *Control, opts LoadOptions) (IData, error)
	Save(ctx context.Context, path string, data IData, ctrl *Control) error

	Rename(ctx context.Context, path, newName string) error
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, srcPath, dstPath string) error
	Copy(ctx context.Context, srcPath, dstPath string) error
	Clear(ctx context.Context, path string) error
	Swap(ctx context.Context, pathA, pathB string) error
	Mkdir(ctx context.Context, path string) error

	FileExists(ctx context.Context, path string) (bool, error)

	GetUploadPath(dstDir, srcPath string, content []byte) (string, error)
	GetDownloadPath(dstDir, srcPath string) (string, error)

	Slot(id int32) string
}

// Base implements every Ops method as ErrUnsupported so a concrete
// connector can embed Base and override only what it supports, matching
// the "missing function pointers mean unsupported" contract without
// forcing every connector to hand-write a full stub set.
type Base struct{}

func unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, ErrUnsupported)
}

func (Base) ReadDir(context.Context, string, []string) (ItemIterator, error) {
	return nil, unsupported("readdir")
}
func (Base) Download(context.Context, string, *Control) (IData, error) {
	return IData{}, unsupported("download")
}
func (Base) Upload(context.Context, string, IData, *Control) error {
	return unsupported("upload")
}
func (Base) Load(context.Context, string, *Control, LoadOptions) (IData, error) {
	return IData{}, unsupported("load")
}
func (Base) Save(context.Context, string, IData, *Control) error {
	return unsupported("save")
}
func (Base) Rename(context.Context, string, string) error { return unsupported("rename") }
func (Base) Delete(context.Context, string) error { return unsupported("delete") }
func (Base) Move(context.Context, string, string) error { return unsupported("move") }
func (Base) Copy(context.Context, string, string) error { return unsupported("copy") }
func (Base) Clear(context.Context, string) error { return unsupported("clear") }
func (Base) Swap(context.Context, string, string) error { return unsupported("swap") }
func (Base) Mkdir(context.Context, string) error { return unsupported("mkdir") }
func (Base) FileExists(context.Context, string) (bool, error) {
	return false, unsupported("file_exists")
}
func (Base) GetUploadPath(dstDir, _ string, _ []byte) (string, error) {
	return dstDir, nil
}
func (Base) GetDownloadPath(dstDir, srcPath string) (string, error) {
	return dstDir + "/" + srcPath, nil
}
func (Base) Slot(id int32) string { return "" }
