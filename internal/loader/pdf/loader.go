// Package pdf extracts page text from PDF files with the pdftotext tool from poppler.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pdfrag/internal/domain"
)

const toolName = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Loader implements domain.Loader.
type Loader struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

var _ domain.Loader = (*Loader)(nil)

// New creates a loader that executes pdftotext.
func New() *Loader {
	return &Loader{runner: execRunner{}, lookPath: exec.LookPath}
}

// NewWithRunner creates a loader with a custom command runner. The tool
// lookup is skipped, which lets tests run without poppler installed.
func NewWithRunner(runner CommandRunner) *Loader {
	return &Loader{runner: runner}
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return `pdftotext is required to read PDF files. Install poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// Load extracts the pages of the PDF at path. Page numbers start at 1.
// Unreadable files and files without extractable text fail with domain.ErrIngestion.
func (l *Loader) Load(ctx context.Context, path string) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrIngestion, path)
	}
	if l.lookPath != nil {
		if _, err := l.lookPath(toolName); err != nil {
			return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrIngestion, ErrPDFToolNotFound)
		}
	}

	out, err := l.runner.Run(ctx, toolName, "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: pdftotext failed: %v", domain.ErrIngestion, err)
	}

	doc := domain.Document{
		ID:    filepath.Base(path),
		Path:  path,
		Pages: splitPages(string(out)),
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return domain.Document{}, fmt.Errorf("%w: no extractable text in %s", domain.ErrIngestion, filepath.Base(path))
	}
	return doc, nil
}

// splitPages cuts pdftotext output at form feeds. pdftotext ends every page
// with a form feed, so the empty tail after the last one is dropped.
func splitPages(out string) []domain.Page {
	raw := strings.Split(out, "\f")
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	pages := make([]domain.Page, 0, len(raw))
	for i, text := range raw {
		pages = append(pages, domain.Page{Number: i + 1, Text: strings.TrimSpace(text)})
	}
	return pages
}
