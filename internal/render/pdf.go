package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mirefly/docharbor/internal/doc"
)

// PDFRenderer prints the HTML rendition to PDF through a locally
// installed browser or wkhtmltopdf. Nothing in the module ships a PDF
// engine of its own.
type PDFRenderer struct {
	html *HTMLRenderer

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
}

// NewPDFRenderer returns the PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{html: NewHTMLRenderer(), lookPath: exec.LookPath}
}

// ErrNoPDFEngine reports that no usable converter binary was found.
var ErrNoPDFEngine = fmt.Errorf("no PDF engine found: install Chrome, Chromium, Edge, or wkhtmltopdf, or export HTML instead")

// Render implements Renderer.
func (r *PDFRenderer) Render(ctx context.Context, blocks []doc.Block, opts Options) ([]byte, error) {
	page, err := r.html.Render(ctx, blocks, opts)
	if err != nil {
		return nil, err
	}

	bin, kind, err := r.findEngine()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "docharbor-pdf-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "page.html")
	out := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(src, page, 0o644); err != nil {
		return nil, fmt.Errorf("write page: %w", err)
	}

	var cmd *exec.Cmd
	switch kind {
	case engineChromium:
		cmd = exec.CommandContext(ctx, bin,
			"--headless", "--disable-gpu", "--no-sandbox",
			"--no-pdf-header-footer",
			"--print-to-pdf="+out, src)
	case engineWkhtmltopdf:
		cmd = exec.CommandContext(ctx, bin, "--quiet", src, out)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(bin), err, string(output))
	}

	pdf, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converter output: %w", err)
	}
	return pdf, nil
}

type engineKind int

const (
	engineChromium engineKind = iota
	engineWkhtmltopdf
)

type engineCandidate struct {
	path string
	kind engineKind
}

// findEngine probes well-known install locations, then PATH.
func (r *PDFRenderer) findEngine() (string, engineKind, error) {
	for _, c := range knownEngines() {
		if info, err := os.Stat(c.path); err == nil && !info.IsDir() {
			return c.path, c.kind, nil
		}
	}
	names := []engineCandidate{
		{"google-chrome", engineChromium},
		{"chromium", engineChromium},
		{"chromium-browser", engineChromium},
		{"msedge", engineChromium},
		{"wkhtmltopdf", engineWkhtmltopdf},
	}
	for _, c := range names {
		if path, err := r.lookPath(c.path); err == nil {
			return path, c.kind, nil
		}
	}
	return "", 0, ErrNoPDFEngine
}

func knownEngines() []engineCandidate {
	switch runtime.GOOS {
	case "darwin":
		return []engineCandidate{
			{"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome", engineChromium},
			{"/Applications/Chromium.app/Contents/MacOS/Chromium", engineChromium},
			{"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge", engineChromium},
			{"/usr/local/bin/wkhtmltopdf", engineWkhtmltopdf},
		}
	case "windows":
		return []engineCandidate{
			{`C:\Program Files\Google\Chrome\Application\chrome.exe`, engineChromium},
			{`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`, engineChromium},
			{`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`, engineChromium},
			{`C:\Program Files\wkhtmltopdf\bin\wkhtmltopdf.exe`, engineWkhtmltopdf},
		}
	default:
		return []engineCandidate{
			{"/usr/bin/google-chrome", engineChromium},
			{"/usr/bin/chromium", engineChromium},
			{"/usr/bin/chromium-browser", engineChromium},
			{"/snap/bin/chromium", engineChromium},
			{"/usr/bin/wkhtmltopdf", engineWkhtmltopdf},
			{"/usr/local/bin/wkhtmltopdf", engineWkhtmltopdf},
		}
	}
}
