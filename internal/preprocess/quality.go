package preprocess

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// QualityMeter computes OCR readiness hints for an image.
type QualityMeter struct {
	opts      Options
	slicePool sync.Pool
}

func NewQualityMeter(opts Options) *QualityMeter {
	return &QualityMeter{
		opts: opts.sanitized(),
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Assess decodes the file at path and measures it.
func (q *QualityMeter) Assess(path string) (models.ImageQuality, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return models.ImageQuality{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return q.Measure(toGray(img)), nil
}

// Measure fills ImageQuality from a greyscale image.
func (q *QualityMeter) Measure(gray *image.Gray) models.ImageQuality {
	b := gray.Bounds()
	res := models.ImageQuality{
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	if res.Width == 0 || res.Height == 0 {
		return res
	}

	res.LaplacianVar = q.LaplacianVariance(gray)
	res.Brightness = q.Brightness(gray)
	res.Blurry = res.LaplacianVar <= q.opts.BlurThreshold
	res.TooDark = res.Brightness < q.opts.DarkThreshold
	res.TooBright = res.Brightness > q.opts.BrightThreshold
	return res
}

// LaplacianVariance is the variance of the 4-neighbour Laplacian response. Low values mean blur.
func (q *QualityMeter) LaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := q.slicePool.Get().([]float64)
	defer func() { q.slicePool.Put(data[:0]) }()

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}

// Brightness is the mean grey level on 0..255. Large images are summed in horizontal strips.
func (q *QualityMeter) Brightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	sumRows := func(startY, endY int) float64 {
		var total float64
		for y := startY; y < endY; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				total += float64(gray.GrayAt(x, y).Y)
			}
		}
		return total
	}

	if width*height < 100000 {
		return sumRows(b.Min.Y, b.Max.Y) / float64(width*height)
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup
	for startY := b.Min.Y; startY < b.Max.Y; startY += rowsPerWorker {
		endY := startY + rowsPerWorker
		if endY > b.Max.Y {
			endY = b.Max.Y
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			results <- sumRows(startY, endY)
		}(startY, endY)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var total float64
	for s := range results {
		total += s
	}
	return total / float64(width*height)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	src := imaging.Grayscale(img)
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Pix[y*gray.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return gray
}
