package meli

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/meliprint/meliprint/internal/entities"
)

// The label endpoint does not reliably declare a content type, so the
// envelope is detected by magic bytes instead.
var (
	zipMagic  = []byte{0x50, 0x4B}
	gzipMagic = []byte{0x1F, 0x8B}
)

// DecodeLabelPayload unwraps whatever binary envelope the label endpoint
// returned (ZIP archive, gzip stream or plain text) into ZPL markup.
func DecodeLabelPayload(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return decodeZIP(data)
	case bytes.HasPrefix(data, gzipMagic):
		return decodeGzip(data)
	default:
		return strings.TrimSpace(string(data)), nil
	}
}

func decodeZIP(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open label archive: %w", err)
	}

	file := pickArchiveEntry(zr.File)
	if file == nil {
		return "", entities.ErrEmptyArchive
	}

	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %s", entities.ErrMissingEntry, file.Name)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read archive entry %s: %w", file.Name, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// pickArchiveEntry prefers a .zpl file, then a .txt file, then the first
// regular file of any name.
func pickArchiveEntry(files []*zip.File) *zip.File {
	var txt, other *zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(name, ".zpl"):
			return f
		case strings.HasSuffix(name, ".txt") && txt == nil:
			txt = f
		case other == nil:
			other = f
		}
	}
	if txt != nil {
		return txt
	}
	return other
}

func decodeGzip(data []byte) (string, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gr.Close()

	content, err := io.ReadAll(gr)
	if err != nil {
		return "", fmt.Errorf("failed to decompress labels: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}
