package preprocess

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func writeTemp(data []byte) (dir, path string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "docextract-pp-*")
	if err != nil {
		return "", "", nil, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }
	path = filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", "", nil, err
	}
	return dir, path, cleanup, nil
}

// pdfToText returns one string per page; pdftotext separates pages with a form feed.
func (p *Preprocessor) pdfToText(ctx context.Context, path string) ([]string, error) {
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if p.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.cfg.MaxPages))
	}
	args = append(args, path, "-")
	out, errb, err := p.runner.Run(ctx, p.cfg.Pdftotext, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	pages := strings.Split(string(out), "\f")
	// trailing form feed yields an empty tail
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	for i := range pages {
		pages[i] = strings.TrimRight(pages[i], "\n ")
	}
	return pages, nil
}

// rasterize renders every page to PNG and returns them base64-encoded in page order.
func (p *Preprocessor) rasterize(ctx context.Context, path, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(p.cfg.DPI), "-png"}
	if p.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 200 -png <in.pdf> <tmp/page>
	if _, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, args...); err != nil {
		return nil, common.PreprocessError("rasterize pdf", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb))))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, common.PreprocessError("rasterize pdf", fmt.Errorf("pdftoppm produced no pages"))
	}
	sortPages(matches)

	images := make([]string, len(matches))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, m := range matches {
		g.Go(func() error {
			b, err := os.ReadFile(m)
			if err != nil {
				return common.PreprocessError("read rendered page", err)
			}
			images[i] = base64.StdEncoding.EncodeToString(b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// sortPages orders prefix-N.png by N; pdftoppm zero-pads, but not across versions.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		n, _ := strconv.Atoi(base[i+1:])
		return n
	}
	sort.SliceStable(paths, func(a, b int) bool { return num(paths[a]) < num(paths[b]) })
}
