//go:build prod

package web

import (
	"embed"
	"io/fs"
	"log/slog"
)

//go:embed index.tmpl.html css/*
var embedded embed.FS

// Assets holds the page template and stylesheets compiled into the binary.
var Assets fs.FS = embedded

func init() {
	slog.Info("serving web assets from embedded filesystem", "build_tag", "prod")
}
