// Package loader turns a file on disk into an executable prototype: source
// files are lexed and compiled, bytecode images are decoded. Image files
// are recognized by their magic bytes, so either kind can be passed to
// Load without naming conventions.
package loader

import (
	"bytes"
	"os"

	"github.com/lookbusy1344/lua-vm/bytecode"
	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/ferr"
	"github.com/lookbusy1344/lua-vm/lexer"
)

// LoadSource opens path for buffered sequential reads, tokenizes it, and
// compiles it to a prototype.
func LoadSource(path string) (*compiler.ParseProto, error) {
	f, err := os.Open(path) // #nosec G304 -- user-specified script path
	if err != nil {
		return nil, ferr.Wrap(ferr.Position{Filename: path}, ferr.IO, err)
	}
	defer f.Close()

	return compiler.Load(lexer.New(f, path))
}

// LoadImage reads a bytecode image file and decodes it.
func LoadImage(path string) (*compiler.ParseProto, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified image path
	if err != nil {
		return nil, ferr.Wrap(ferr.Position{Filename: path}, ferr.IO, err)
	}
	return bytecode.Decode(data)
}

// Load dispatches on the file's leading bytes: files starting with the
// image magic decode as bytecode images, everything else compiles as
// source.
func Load(path string) (*compiler.ParseProto, error) {
	f, err := os.Open(path) // #nosec G304 -- user-specified path
	if err != nil {
		return nil, ferr.Wrap(ferr.Position{Filename: path}, ferr.IO, err)
	}
	var head [4]byte
	n, _ := f.Read(head[:])
	f.Close()

	if n == len(head) && bytes.Equal(head[:], bytecode.Magic[:]) {
		return LoadImage(path)
	}
	return LoadSource(path)
}

// SaveImage compiles nothing — it writes an already-compiled prototype to
// path as a bytecode image.
func SaveImage(path string, proto *compiler.ParseProto) error {
	data, err := bytecode.Encode(proto)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil { // #nosec G306 -- image is not sensitive
		return ferr.Wrap(ferr.Position{Filename: path}, ferr.IO, err)
	}
	return nil
}
