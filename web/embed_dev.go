//go:build !prod

package web

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Assets is a filesystem rooted at the web/ package directory, independent
// of the process working directory, so template edits show up without a
// rebuild. Build with -tags prod to embed the files instead.
var Assets fs.FS

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("runtime.Caller failed in web/embed_dev.go")
	}
	Assets = os.DirFS(filepath.Dir(file))
}
