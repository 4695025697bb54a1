package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/types"
)

// Poppler renders and unpacks PDFs with the poppler-utils binaries
// pdftoppm and pdfimages, which must be on PATH.
type Poppler struct {
	DPI int
}

func NewPoppler(dpi int) *Poppler {
	if dpi <= 0 {
		dpi = 150
	}
	return &Poppler{DPI: dpi}
}

// ImagesDir is where the page images of pdfPath are written.
func ImagesDir(pdfPath string) string {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(filepath.Dir(pdfPath), "images-"+stem)
}

// Rasterize renders every page to <dir>/images-<stem>/page_<n>.png and returns
// the page paths in page order.
func (p *Poppler) Rasterize(ctx context.Context, pdfPath string) (string, []string, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return "", nil, types.PathNotFound("file", pdfPath)
	}

	dir := ImagesDir(pdfPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("creating images folder: %w", err)
	}

	// pdftoppm writes <prefix>-<n>.png, zero-padding n to the page count width
	prefix := filepath.Join(dir, "raw")
	if err := run(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(p.DPI), pdfPath, prefix); err != nil {
		return "", nil, err
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", nil, err
	}

	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "raw-"), ".png"))
		if err != nil {
			continue
		}
		target := filepath.Join(dir, fmt.Sprintf("page_%d.png", n))
		if err := os.Rename(m, target); err != nil {
			return "", nil, fmt.Errorf("renaming page image: %w", err)
		}
		pages = append(pages, page{n, target})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, len(pages))
	for i, pg := range pages {
		paths[i] = pg.path
	}
	logger.Debug("rasterized %d pages of %s into %s", len(paths), filepath.Base(pdfPath), dir)
	return dir, paths, nil
}

// EmbeddedImages extracts the raster images stored inside a PDF as PNG bytes.
func (p *Poppler) EmbeddedImages(ctx context.Context, pdfPath string) ([][]byte, error) {
	tmp, err := os.MkdirTemp("", "ragmodes-images-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	if err := run(ctx, "pdfimages", "-png", pdfPath, filepath.Join(tmp, "img")); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(tmp, "img-*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

func run(ctx context.Context, name string, args ...string) error {
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s not found on PATH (install poppler-utils)", types.ErrExternalService, name)
	}
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", types.ErrExternalService, name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
