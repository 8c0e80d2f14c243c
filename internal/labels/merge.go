package labels

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFMerger concatenates PDF documents page by page with pdfcpu.
type PDFMerger struct{}

func NewPDFMerger() PDFMerger {
	return PDFMerger{}
}

func (PDFMerger) Merge(docs [][]byte) ([]byte, error) {
	readers := make([]io.ReadSeeker, len(docs))
	for i, doc := range docs {
		readers[i] = bytes.NewReader(doc)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, nil); err != nil {
		return nil, fmt.Errorf("pdf merge failed: %w", err)
	}
	return out.Bytes(), nil
}
