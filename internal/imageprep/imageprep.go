// Package imageprep downsizes scans before they are sent to a provider.
package imageprep

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// JPEGQuality is used for every prepared image.
const JPEGQuality = 85

// Prepare decodes src, scales it so its longest edge is at most maxEdge, and
// writes it as JPEG into destDir. It returns the prepared path.
func Prepare(src, destDir string, maxEdge int) (string, error) {
	return prepareAs(context.Background(), src, filepath.Join(destDir, outputName(src)), maxEdge)
}

// PreparePair prepares the front and back images concurrently. When both refer
// to the same file it is prepared once.
func PreparePair(ctx context.Context, front, back, destDir string, maxEdge int) (string, string, error) {
	if front == back {
		out, err := prepareAs(ctx, front, filepath.Join(destDir, outputName(front)), maxEdge)
		return out, out, err
	}

	frontOut := filepath.Join(destDir, outputName(front))
	backOut := filepath.Join(destDir, outputName(back))
	if frontOut == backOut {
		backOut = strings.TrimSuffix(backOut, ".jpg") + "_back.jpg"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := prepareAs(gctx, front, frontOut, maxEdge)
		return err
	})
	g.Go(func() error {
		_, err := prepareAs(gctx, back, backOut, maxEdge)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return frontOut, backOut, nil
}

func outputName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

// prepareAs stops before decoding and again before writing once ctx is done.
func prepareAs(ctx context.Context, src, dest string, maxEdge int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return "", fmt.Errorf("failed to decode image %s: %w", src, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create prepared image: %w", err)
	}
	if err := jpeg.Encode(out, Resize(img, maxEdge), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to encode prepared image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write prepared image: %w", err)
	}
	return dest, nil
}

// Resize scales img down so its longest edge is maxEdge. Smaller images are
// returned unchanged.
func Resize(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := max(w, h)
	if maxEdge <= 0 || longest <= maxEdge {
		return img
	}
	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, (h*maxEdge+w/2)/w)
	} else {
		nw = max(1, (w*maxEdge+h/2)/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
