package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteToAndRead(t *testing.T) {
	fsys := OSFileSystem{}
	name := filepath.Join(t.TempDir(), "plots", "scan-001.txt")

	if err := WriteTo(fsys, name, strings.NewReader("sweep")); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	data, err := fsys.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "sweep" {
		t.Errorf("expected %q, got %q", "sweep", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	testData[0] = 'j'

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("expected stored copy to be isolated, got %q", data)
	}
}

func TestMemoryFileSystem_CreateWritesThrough(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/run.log")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("## INITIALIZATION ##\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Visible before Close.
	data, err := mfs.ReadFile("/run.log")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "## INITIALIZATION ##\n" {
		t.Errorf("unexpected content %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed on second Close, got %v", err)
	}
}

func TestMemoryFileSystem_CreateTruncates(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a.txt", []byte("old content"), 0644)

	w, err := mfs.Create("/a.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _ = w.Write([]byte("new"))
	_ = w.Close()

	data, _ := mfs.ReadFile("/a.txt")
	if string(data) != "new" {
		t.Errorf("expected %q, got %q", "new", data)
	}
}

func TestMemoryFileSystem_CreateOverDirectory(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/plots", 0755)

	if _, err := mfs.Create("/plots"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadNonExistent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/dir/../test.txt", []byte("data"), 0644)

	if !mfs.Exists("/test.txt") {
		t.Error("expected cleaned path to exist")
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/plots/scan-002.png", "/plots/scan-001.png", "/other/x.png", "/plots.png"} {
		if err := WriteTo(mfs, name, strings.NewReader("png")); err != nil {
			t.Fatalf("WriteTo(%s) failed: %v", name, err)
		}
	}

	got := mfs.Files("/plots")
	want := []string{"/plots/scan-001.png", "/plots/scan-002.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Files = %v, want %v", got, want)
	}
	if !mfs.Exists("/other") {
		t.Error("expected WriteTo to create the parent directory")
	}
}
