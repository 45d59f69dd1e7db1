package scene

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"lumen/camera"
	"lumen/rgbimage"
)

// RowCache stores finished rows so an interrupted render can pick up where it
// left off.
type RowCache interface {
	// LoadRow returns the cached band for row, or nil if there is none.
	LoadRow(ctx context.Context, fingerprint string, row int) (*rgbimage.RGBImage, error)
	StoreRow(ctx context.Context, fingerprint string, row int, band *rgbimage.RGBImage) error
}

type RenderOptions struct {
	Width, Height int

	// Samples is the number of primary rays averaged per pixel.
	Samples int

	// MaxDepth bounds scattering events per path.  Zero means DefaultMaxDepth.
	MaxDepth int

	// Workers bounds the number of rows rendered at once.  Zero means one per
	// CPU.
	Workers int

	// Seed determines every random choice of the render.  Renders with equal
	// seeds and options produce identical images.
	Seed int64

	// Cache is optional.
	Cache RowCache
}

func (o *RenderOptions) Validate() error {
	if o.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", o.Width)
	}
	if o.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", o.Height)
	}
	if o.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", o.Samples)
	}
	if o.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", o.MaxDepth)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

func (o *RenderOptions) maxDepth() int {
	if o.MaxDepth == 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o *RenderOptions) workers() int {
	if o.Workers == 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// ProgressFunction receives the number of finished pixels and the total.  It
// is called from a single goroutine, once per finished row, with increasing
// counts.  A slow ProgressFunction does not hold up row workers, and
// RenderScene returns only after the last call.
type ProgressFunction func(done, total int)

// ChunkWorker renders a band of rows with its own random source.
type ChunkWorker struct {
	sampleDB *rgbimage.RGBImage
	rng      *rand.Rand

	maxDepth      int
	targetSamples int

	// These are the dimensions of the overall image, not just the band.
	imgRows int
	imgCols int

	rowSrc int
	rowLim int

	scene  *Scene
	camera camera.Camera

	bounces int64
}

func (w *ChunkWorker) Render() {
	for cr := w.rowSrc; cr < w.rowLim; cr++ {
		// Row 0 is the top of the image, where the vertical screen coordinate
		// is largest.
		j := w.imgRows - 1 - cr
		for cc := 0; cc < w.imgCols; cc++ {
			for cs := 0; cs < w.targetSamples; cs++ {
				u := (float32(cc) + w.rng.Float32()) / float32(w.imgCols)
				v := (float32(j) + w.rng.Float32()) / float32(w.imgRows)

				curQuery := w.camera.GetRay(u, v, w.rng)
				radiance, bounces := w.scene.SampleRay(curQuery, w.rng, w.maxDepth)
				w.sampleDB.RecordSample(cr-w.rowSrc, cc, radiance)
				w.bounces += int64(bounces)
			}
		}
	}
}

// rowSeed derives an independent seed for each row (splitmix64), so the image
// does not depend on how rows are scheduled.
func rowSeed(seed int64, row int) int64 {
	z := uint64(seed) + uint64(row+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// renderFingerprint identifies everything that determines a row's pixels.
func renderFingerprint(scene *Scene, cam camera.Camera, options *RenderOptions) string {
	return fmt.Sprintf("%s/%+v/%dx%d/s%d/d%d/seed%d", scene.Fingerprint(), cam, options.Width, options.Height, options.Samples, options.maxDepth(), options.Seed)
}

// RenderScene traces every pixel of the image described by options.  Rows are
// rendered in parallel, each by its own ChunkWorker.  The scene is crushed
// first if it has not been already.
func RenderScene(ctx context.Context, scene *Scene, cam camera.Camera, options *RenderOptions, progressFunction ProgressFunction) (*rgbimage.RGBImage, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("while validating render options: %w", err)
	}

	if !scene.Crushed() {
		scene.Crush()
	}

	tracer := otel.Tracer("lumen/scene")
	ctx, span := tracer.Start(ctx, "RenderScene")
	defer span.End()
	span.SetAttributes(
		attribute.String("scene", scene.Name),
		attribute.Int("width", options.Width),
		attribute.Int("height", options.Height),
		attribute.Int("samples", options.Samples),
	)

	workers := options.workers()
	glog.V(1).Infof("Rendering scene %q: %dx%d, %d samples/pixel, max depth %d, %d workers, %d elements",
		scene.Name, options.Width, options.Height, options.Samples, options.maxDepth(), workers, len(scene.CrushedElements))

	var fingerprint string
	if options.Cache != nil {
		fingerprint = renderFingerprint(scene, cam, options)
	}

	sampleDB := rgbimage.New(options.Height, options.Width)
	totalPixels := options.Width * options.Height

	// Each row sends one update, so sends never block.
	progressUpdates := make(chan int, options.Height)
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		for done := range progressUpdates {
			if progressFunction != nil {
				progressFunction(done, totalPixels)
			}
		}
	}()

	// progressMutex locks both curProgress and sampleDB, and orders the
	// updates.
	progressMutex := sync.Mutex{}
	curProgress := 0
	finishRow := func(row int, band *rgbimage.RGBImage) {
		progressMutex.Lock()
		defer progressMutex.Unlock()

		sampleDB.Paste(band, row, 0)
		curProgress += options.Width
		progressUpdates <- curProgress
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	// egCtx is done once a row worker fails or the caller gives up.  Acquire
	// does not notice that if a slot is free, so check first.
	var scheduleErr error
	for row := 0; row < options.Height; row++ {
		row := row

		if err := egCtx.Err(); err != nil {
			scheduleErr = err
			break
		}
		if err := sem.Acquire(egCtx, 1); err != nil {
			scheduleErr = err
			break
		}

		eg.Go(func() error {
			defer sem.Release(1)

			if options.Cache != nil {
				band, err := options.Cache.LoadRow(egCtx, fingerprint, row)
				if err != nil {
					return fmt.Errorf("while loading row %d from cache: %w", row, err)
				}
				if band != nil && band.RowSize == 1 && band.ColSize == options.Width {
					recordCachedRow(egCtx, scene.Name, int64(options.Width))
					finishRow(row, band)
					return nil
				}
			}

			worker := &ChunkWorker{
				sampleDB:      rgbimage.New(1, options.Width),
				rng:           rand.New(rand.NewSource(rowSeed(options.Seed, row))),
				maxDepth:      options.maxDepth(),
				targetSamples: options.Samples,
				imgRows:       options.Height,
				imgCols:       options.Width,
				rowSrc:        row,
				rowLim:        row + 1,
				scene:         scene,
				camera:        cam,
			}
			worker.Render()

			recordRow(egCtx, scene.Name, int64(options.Width), int64(options.Width*options.Samples), worker.bounces)
			glog.V(2).Infof("Finished row %d (%d bounces)", row, worker.bounces)

			if options.Cache != nil {
				if err := options.Cache.StoreRow(egCtx, fingerprint, row, worker.sampleDB); err != nil {
					return fmt.Errorf("while storing row %d in cache: %w", row, err)
				}
			}

			finishRow(row, worker.sampleDB)
			return nil
		})
	}

	waitErr := eg.Wait()
	close(progressUpdates)
	<-reporterDone

	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		return nil, fmt.Errorf("while waiting for row workers: %w", waitErr)
	}

	if scheduleErr != nil {
		span.RecordError(scheduleErr)
		span.SetStatus(codes.Error, scheduleErr.Error())
		return nil, fmt.Errorf("while scheduling rows: %w", scheduleErr)
	}

	return sampleDB, nil
}
