package server

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create static sub filesystem: " + err.Error())
	}
	return subFS
}

// StreamFile writes an embedded static asset with a content type taken from its extension
func StreamFile(w http.ResponseWriter, _ *http.Request, fileName string) error {
	name := path.Clean(fileName)
	if strings.HasPrefix(name, "..") {
		return fmt.Errorf("invalid static path %s", fileName)
	}
	data, err := fs.ReadFile(StaticFilesFS(), name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s content: %w", name, err)
	}
	return nil
}
