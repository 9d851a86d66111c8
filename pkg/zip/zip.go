// Package zip bundles generated comic pages into a downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
)

// Asset is one page image to archive. MIME is informational; zip entries
// carry no content type.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes the assets into an in-memory zip, keeping the given
// order. Returns nil when a write fails partway; callers treat that as a
// whole-archive failure rather than serving a truncated file.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.Create(asset.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	if err := zw.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}
