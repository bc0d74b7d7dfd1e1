package task

import (
	"os"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/xerr"
	"github.com/dagargo/elektroid/internal/xpath"
)

// upload runs one upload task: mkdir the destination
// directory (idempotent), load the source through SrcFS (the local
// system connector) into the device-side representation, resolve the
// final upload path against DstFS, consult the overwrite policy, then
// hand the data to DstFS.Upload.
func (e *Engine) upload(t *Task) error {
	ctrl := NewControl(nil, 2, nil)
	t.attachControl(ctrl)
	fc := ctrl.FsopsControl()

	ctrl.SetPart(0)
	dstDir := xpath.Dir(t.Dst)
	if err := t.DstFS.Mkdir(ctrl.Context(), dstDir); err != nil &&
		!isUnsupported(err) && !xerr.Is(err, xerr.KindExists) {
		return err
	}

	idata, err := t.SrcFS.Load(ctrl.Context(), t.Src, fc, fsops.LoadOptions{})
	if err != nil {
		return err
	}

	ctrl.SetPart(1)
	uploadPath := t.Dst
	if !t.DstFS.Options().Has(fsops.SlotStorage) {
		p, err := t.DstFS.GetUploadPath(dstDir, t.Src, idata.Content)
		if err != nil {
			return err
		}
		uploadPath = p
	}

	if exists, err := t.DstFS.FileExists(ctrl.Context(), uploadPath); err == nil && exists {
		proceed, err := e.resolveOverwrite(t)
		if err != nil {
			return err
		}
		if !proceed {
			return xerr.New(xerr.KindCanceled, "task.upload", xerr.ErrCanceled)
		}
	} else if err != nil && !isUnsupported(err) {
		return err
	}

	if err := t.DstFS.Upload(ctrl.Context(), uploadPath, idata, fc); err != nil {
		return err
	}
	fc.Report(1)
	return nil
}

// download is the symmetric pipeline: SrcFS.Download (the device
// connector) produces the device-side bytes, DstFS.Save (the local
// system connector) writes them to disk at the destination resolved by
// DstFS.GetDownloadPath.
func (e *Engine) download(t *Task) error {
	ctrl := NewControl(nil, 2, nil)
	t.attachControl(ctrl)
	fc := ctrl.FsopsControl()

	ctrl.SetPart(0)
	idata, err := t.SrcFS.Download(ctrl.Context(), t.Src, fc)
	if err != nil {
		return err
	}

	ctrl.SetPart(1)
	downloadPath := t.Dst
	if !t.DstFS.Options().Has(fsops.SlotStorage) {
		p, err := t.DstFS.GetDownloadPath(t.Dst, t.Src)
		if err != nil {
			return err
		}
		downloadPath = p
	}

	// The download destination is always a local path, so existence is
	// checked on the local filesystem directly rather than through
	// DstFS.FileExists, which callers may still route to the same
	// os.Stat-backed implementation (the system connector does); using
	// os.Stat here keeps the check independent of DstFS's identity.
	if _, err := os.Stat(downloadPath); err == nil {
		proceed, err := e.resolveOverwrite(t)
		if err != nil {
			return err
		}
		if !proceed {
			return xerr.New(xerr.KindCanceled, "task.download", xerr.ErrCanceled)
		}
	}

	if err := t.DstFS.Save(ctrl.Context(), downloadPath, idata, fc); err != nil {
		return err
	}
	fc.Report(1)
	return nil
}
