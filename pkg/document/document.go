// Package document downloads story PDFs and extracts their text.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/ledongthuc/pdf"

	"github.com/zen-systems/fieldscore/pkg/fetch"
)

// DefaultMaxBytes caps PDF downloads.
const DefaultMaxBytes = 50 << 20

// ErrNoText is returned for PDFs without extractable text, e.g. scans.
var ErrNoText = errors.New("PDF contains no readable text content")

// Extractor turns a document URL into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, url string) (string, error)
}

// PDFExtractor downloads a PDF over HTTP and reads its text layer.
type PDFExtractor struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewPDFExtractor creates an extractor. A nil client gets a 30s timeout.
func NewPDFExtractor(client *http.Client) *PDFExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PDFExtractor{httpClient: client, maxBytes: DefaultMaxBytes}
}

// ExtractText downloads url and returns the trimmed text of every page.
func (e *PDFExtractor) ExtractText(ctx context.Context, url string) (string, error) {
	data, _, err := fetch.Download(ctx, e.httpClient, url, e.maxBytes)
	if err != nil {
		return "", fmt.Errorf("HTTP error downloading PDF: %w", err)
	}

	text, err := Text(data)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"url":   url,
		"bytes": len(data),
		"chars": len(text),
	}).Debug("extracted pdf text")
	return text, nil
}

// Text extracts the plain text of an in-memory PDF.
func Text(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF processing error: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("PDF processing error: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("PDF processing error: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("PDF processing error: %w", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
