package preprocess

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ProcessedPrefix marks derived files so they can be told apart from originals.
const ProcessedPrefix = "processed_"

// Normalizer prepares an image for text recognition and returns the derived file path.
type Normalizer interface {
	Normalize(ctx context.Context, srcPath string) (string, error)
}

// ProcessedName derives the output file name for src. The result is always PNG.
func ProcessedName(src string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return ProcessedPrefix + stem + ".png"
}

// IsProcessed reports whether name was produced by ProcessedName.
func IsProcessed(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ProcessedPrefix)
}

type labelNormalizer struct {
	opts Options
}

// NewNormalizer returns a Normalizer applying greyscale, histogram stretch, gain and sharpen, in that order.
func NewNormalizer(opts Options) Normalizer {
	return &labelNormalizer{opts: opts.sanitized()}
}

func (n *labelNormalizer) Normalize(ctx context.Context, srcPath string) (string, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(n.opts.AutoOrient))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(srcPath), err)
	}

	out, err := n.Apply(ctx, img)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(filepath.Dir(srcPath), ProcessedName(srcPath))
	if err := imaging.Save(out, dst); err != nil {
		return "", fmt.Errorf("save %s: %w", filepath.Base(dst), err)
	}
	return dst, nil
}

// Apply runs the in-memory transform chain.
func (n *labelNormalizer) Apply(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := imaging.Grayscale(img)

	steps := []func(*image.NRGBA) *image.NRGBA{
		n.stretch,
		func(in *image.NRGBA) *image.NRGBA { return applyLUT(in, gainLUT(n.opts.Gain)) },
		func(in *image.NRGBA) *image.NRGBA {
			if n.opts.SharpenSigma == 0 {
				return in
			}
			return imaging.Sharpen(in, n.opts.SharpenSigma)
		},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur = step(cur)
	}
	return cur, nil
}

// stretch maps the clipped intensity range of a greyscale image onto 0..255.
func (n *labelNormalizer) stretch(img *image.NRGBA) *image.NRGBA {
	lo, hi := percentileBounds(histogram(img), n.opts.ClipPercent)
	if hi <= lo {
		return img
	}
	var lut [256]uint8
	scale := 255.0 / float64(hi-lo)
	for v := 0; v < 256; v++ {
		lut[v] = clamp(float64(v-lo) * scale)
	}
	return applyLUT(img, lut)
}

func histogram(img *image.NRGBA) [256]int {
	var h [256]int
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			h[row[x]]++
		}
	}
	return h
}

func percentileBounds(h [256]int, clipPercent float64) (int, int) {
	total := 0
	for _, c := range h {
		total += c
	}
	if total == 0 {
		return 0, 0
	}
	clip := int(math.Floor(float64(total) * clipPercent / 100))

	lo, acc := 0, 0
	for ; lo < 255; lo++ {
		acc += h[lo]
		if acc > clip {
			break
		}
	}
	hi := 255
	acc = 0
	for ; hi > 0; hi-- {
		acc += h[hi]
		if acc > clip {
			break
		}
	}
	return lo, hi
}

func gainLUT(gain float64) [256]uint8 {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = clamp(float64(v) * gain)
	}
	return lut
}

func applyLUT(img *image.NRGBA, lut [256]uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
