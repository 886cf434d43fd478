package cli

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/dmitrijs2005/vipclub/internal/filex"
	"github.com/dmitrijs2005/vipclub/internal/netx"
)

func (a *App) targetDir(dir string) string {
	if dir == "" {
		return a.config.DownloadDir
	}
	return dir
}

// safeName keeps a server-suggested file name inside the target directory.
func safeName(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "barcode.png"
	}
	return name
}

// Barcode saves the membership barcode streamed by the API.
func (a *App) Barcode(ctx context.Context, dir string) error {
	name, img, err := a.api.Barcode(ctx)
	if err != nil {
		return err
	}

	p, err := filex.WriteAtomic(a.targetDir(dir), safeName(name), img)
	if err != nil {
		return err
	}
	printlnFn("Saved", p)
	return nil
}

// BarcodeURL prints a presigned link to the stored barcode.
func (a *App) BarcodeURL(ctx context.Context) error {
	p, err := a.api.BarcodeURL(ctx)
	if err != nil {
		return err
	}
	printlnFn(p.URL)
	printlnFn(fmt.Sprintf("(valid for %d seconds)", p.ExpiresIn))
	return nil
}

// FetchBarcode downloads the barcode straight from object storage through
// a presigned link.
func (a *App) FetchBarcode(ctx context.Context, dir string) error {
	p, err := a.api.BarcodeURL(ctx)
	if err != nil {
		return err
	}

	img, err := netx.DownloadPresigned(ctx, a.download, p.URL)
	if err != nil {
		return err
	}

	name := "barcode.png"
	if u, err := url.Parse(p.URL); err == nil {
		if base, err := url.PathUnescape(path.Base(u.EscapedPath())); err == nil {
			name = base
		}
	}

	saved, err := filex.WriteAtomic(a.targetDir(dir), safeName(name), img)
	if err != nil {
		return err
	}
	printlnFn("Saved", saved)
	return nil
}
