package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dagargo/elektroid/internal/fsops"
	"github.com/dagargo/elektroid/internal/sample"
)

func writeTestWAV(t *testing.T, path string, rate, channels int, frames int) {
	t.Helper()
	chs := make([][]float64, channels)
	for c := range chs {
		chs[c] = make([]float64, frames)
		for i := range chs[c] {
			chs[c][i] = 0.25
		}
	}
	snd := &sample.Sound{
		Frames: chs,
		Info: fsops.SampleInfo{
			Frames:   int64(frames),
			Channels: channels,
			Rate:     rate,
			Format:   fsops.FormatPCM16,
		},
	}
	data, _ := sample.EncodeWAV(snd)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadDirFiltersByExtensionAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.wav", "b.txt", ".hidden.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	o := &Ops{variant: variants[0]}
	it, err := o.ReadDir(context.Background(), dir, []string{"wav"})
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	defer it.Close()

	var names []string
	for {
		item, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		names = append(names, item.Name)
	}
	if len(names) != 2 || names[0] != "a.wav" || names[1] != "sub" {
		t.Errorf("ReadDir = %v, want [a.wav sub]", names)
	}
}

func TestLoadConvertsToVariantTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	writeTestWAV(t, src, 44100, 2, 4410)

	var mono32k Variant
	for _, v := range variants {
		if v.Rate == 32000 && v.Channels == 1 {
			mono32k = v
		}
	}
	o := &Ops{variant: mono32k}
	idata, err := o.Load(context.Background(), src, &fsops.Control{}, fsops.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idata.Info.Rate != 32000 || idata.Info.Channels != 1 {
		t.Errorf("Load info = rate %d, %d channels; want 32000, 1", idata.Info.Rate, idata.Info.Channels)
	}

	decoded, err := sample.DecodeWAV(idata.Content, false)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if decoded.Info.Rate != 32000 || decoded.Info.Channels != 1 {
		t.Errorf("encoded content = rate %d, %d channels", decoded.Info.Rate, decoded.Info.Channels)
	}
}

func TestRawVariantLoadIsPassthroughInfo(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	writeTestWAV(t, src, 48000, 1, 480)

	o := &Ops{variant: variants[0]}
	idata, err := o.Load(context.Background(), src, &fsops.Control{}, fsops.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idata.Info.Rate != 48000 || idata.Info.Channels != 1 {
		t.Errorf("raw Load should not convert, got rate %d, %d channels", idata.Info.Rate, idata.Info.Channels)
	}
}

func TestFileOperations(t *testing.T) {
	dir := t.TempDir()
	o := &Ops{variant: variants[0]}
	ctx := context.Background()

	path := filepath.Join(dir, "x.bin")
	if err := o.Upload(ctx, path, fsops.IData{Content: []byte("abc")}, &fsops.Control{}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if exists, err := o.FileExists(ctx, path); err != nil || !exists {
		t.Fatalf("FileExists = %v, %v", exists, err)
	}

	if err := o.Rename(ctx, path, "y.bin"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	renamed := filepath.Join(dir, "y.bin")
	if err := o.Copy(ctx, renamed, filepath.Join(dir, "z.bin")); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := o.Delete(ctx, renamed); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if exists, _ := o.FileExists(ctx, renamed); exists {
		t.Error("renamed file should be gone after Delete")
	}

	sub := filepath.Join(dir, "a", "b")
	if err := o.Mkdir(ctx, sub); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if st, err := os.Stat(sub); err != nil || !st.IsDir() {
		t.Errorf("Mkdir did not create %s", sub)
	}
}

func TestGetStorageStats(t *testing.T) {
	stats, err := GetStorageStats(t.TempDir())
	if err != nil {
		t.Fatalf("GetStorageStats: %v", err)
	}
	if stats.Total == 0 {
		t.Error("total bytes should be non-zero for a real mount")
	}
	if stats.Free > stats.Total {
		t.Errorf("free %d exceeds total %d", stats.Free, stats.Total)
	}
}
