package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lookbusy1344/lua-vm/loader"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSource(t *testing.T) {
	path := writeFile(t, "hello.lua", `print "hello"`)

	proto, err := loader.LoadSource(path)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if len(proto.Bytecodes) != 3 {
		t.Errorf("bytecodes: got %d, want 3", len(proto.Bytecodes))
	}
}

func TestLoadSourceMissingFile(t *testing.T) {
	if _, err := loader.LoadSource(filepath.Join(t.TempDir(), "nope.lua")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadSourceParseError(t *testing.T) {
	path := writeFile(t, "bad.lua", `end`)
	if _, err := loader.LoadSource(path); err == nil {
		t.Error("parse error should propagate")
	}
}

func TestImageRoundTripThroughFiles(t *testing.T) {
	srcPath := writeFile(t, "prog.lua", `local t = { 1, 2 }
print(t[2])`)

	proto, err := loader.LoadSource(srcPath)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	imgPath := filepath.Join(t.TempDir(), "prog.lvbc")
	if err := loader.SaveImage(imgPath, proto); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	decoded, err := loader.LoadImage(imgPath)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if len(decoded.Bytecodes) != len(proto.Bytecodes) {
		t.Errorf("bytecodes: got %d, want %d", len(decoded.Bytecodes), len(proto.Bytecodes))
	}
}

func TestLoadDispatchesOnMagic(t *testing.T) {
	srcPath := writeFile(t, "prog.lua", `g = 1`)

	proto, err := loader.LoadSource(srcPath)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	imgPath := filepath.Join(t.TempDir(), "prog.bin")
	if err := loader.SaveImage(imgPath, proto); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	// Both paths load through the same entry point.
	fromSource, err := loader.Load(srcPath)
	if err != nil {
		t.Fatalf("Load source: %v", err)
	}
	fromImage, err := loader.Load(imgPath)
	if err != nil {
		t.Fatalf("Load image: %v", err)
	}

	if len(fromSource.Bytecodes) != len(fromImage.Bytecodes) {
		t.Error("source and image loads disagree")
	}
}

func TestLoadShortFileIsSource(t *testing.T) {
	// A file shorter than the magic cannot be an image; it lexes as
	// source (and here compiles to an empty program).
	path := writeFile(t, "tiny.lua", ";")
	proto, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(proto.Bytecodes) != 0 {
		t.Errorf("bytecodes: got %d, want 0", len(proto.Bytecodes))
	}
}
