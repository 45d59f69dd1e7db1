// lumen renders a scene of spheres by Monte Carlo path tracing and writes the
// result as a plain-text PPM image.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/profiler"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/fogleman/gg"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"lumen/camera"
	"lumen/debugz"
	"lumen/ppm"
	"lumen/rgbimage"
	"lumen/rowcache"
	"lumen/scene"
	"lumen/scenepack"
	"lumen/sink"
	"lumen/vmath/vec3"
)

var (
	output   = flag.String("output", "output.ppm", "Where to write the PPM image: a file path, - for stdout, or gs://bucket/object")
	width    = flag.Int("width", 800, "Output image columns")
	height   = flag.Int("height", 400, "Output image rows")
	samples  = flag.Int("samples", 100, "Camera rays averaged per pixel")
	maxDepth = flag.Int("max-depth", scene.DefaultMaxDepth, "Maximum number of scattering events per path")
	workers  = flag.Int("workers", 0, "Rows rendered concurrently.  0 means one per CPU")
	seed     = flag.Int64("seed", 0, "Random seed.  0 picks one from the clock")

	sceneName = flag.String("scene", "weekend", "Built-in scene name, or path to a JSON scene file")
	dumpScene = flag.String("dump-scene", "", "If set, write the loaded scene to this path as a scene file")

	lookFrom      = &vecFlag{}
	lookAt        = &vecFlag{}
	vup           = &vecFlag{}
	vfov          = flag.Float64("vfov", 0, "Vertical field of view in degrees.  0 keeps the scene's camera")
	aperture      = flag.Float64("aperture", -1, "Lens diameter.  Negative keeps the scene's camera")
	focusDistance = flag.Float64("focus-dist", 0, "Distance to the plane of focus.  0 means the look-from/look-at distance")

	pngOutput = flag.String("png", "", "If set, also write a PNG preview to this destination")

	cacheDir = flag.String("cache-dir", "", "If set, finished rows are kept in a badger database here so an interrupted render can resume")
	cacheTTL = flag.Duration("cache-ttl", 7*24*time.Hour, "How long cached rows are kept")

	debugListen  = flag.String("debug-listen", "", "If set, serve /healthz and /progress on this address:port")
	showProgress = flag.Bool("progress", true, "Show progress on stderr when it is a terminal")

	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 0.01, "What ratio of traces should be exported?")
	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")

	cpuprofile = flag.String("cpu-profile", "", "write cpu profile to `file`")
	memprofile = flag.String("mem-profile", "", "write memory profile to `file`")
)

func init() {
	flag.Var(lookFrom, "look-from", "Camera position as x,y,z.  Unset keeps the scene's camera")
	flag.Var(lookAt, "look-at", "Camera target as x,y,z.  Unset keeps the scene's camera")
	flag.Var(vup, "vup", "Camera up direction as x,y,z.  Unset keeps the scene's camera")
}

// vecFlag parses "x,y,z".
type vecFlag struct {
	v   vec3.T
	set bool
}

func (f *vecFlag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g", f.v[0], f.v[1], f.v[2])
}

func (f *vecFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		f.v[i] = float32(n)
	}
	f.set = true
	return nil
}

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")
	defer glog.Flush()

	glog.Infof("flags:")
	glog.Infof("output: %q", *output)
	glog.Infof("size: %dx%d", *width, *height)
	glog.Infof("samples: %d", *samples)
	glog.Infof("max-depth: %d", *maxDepth)
	glog.Infof("scene: %q", *sceneName)
	glog.Infof("cache-dir: %q", *cacheDir)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			glog.Fatalf("Could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Fatalf("Could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := do(); err != nil {
		glog.Errorf("Error: %v", err)
		pprof.StopCPUProfile()
		glog.Flush()
		os.Exit(1)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			glog.Fatalf("Could not create memory profile: %v", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			glog.Fatalf("Could not write memory profile: %v", err)
		}
	}
}

func do() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An interrupted render stops scheduling rows.  With --cache-dir, the rows
	// already finished are kept for the next run.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case sig := <-signalCh:
			glog.Warningf("Received %v, stopping render", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Cloud Profiler initialization, best done as early as possible.
	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "lumen",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			return fmt.Errorf("while initializing profiler: %w", err)
		}
	}

	if *monitoring {
		shutdown, err := installMonitoring()
		if err != nil {
			return fmt.Errorf("while installing monitoring: %w", err)
		}
		defer shutdown()
	}

	pack, err := loadPack(ctx)
	if err != nil {
		return err
	}

	if *dumpScene != "" {
		if err := scenepack.Save(*dumpScene, pack); err != nil {
			return fmt.Errorf("while dumping scene: %w", err)
		}
		glog.Infof("Wrote scene %q to %s", pack.Scene.Name, *dumpScene)
	}

	cam := camera.New(cameraConfig(pack.Camera))

	renderSeed := *seed
	if renderSeed == 0 {
		renderSeed = time.Now().UnixNano()
	}
	glog.Infof("seed: %d", renderSeed)
	if *cacheDir != "" && *seed == 0 {
		glog.Warningf("Row cache in use without --seed; rerun with --seed=%d to resume this render", renderSeed)
	}

	options := &scene.RenderOptions{
		Width:    *width,
		Height:   *height,
		Samples:  *samples,
		MaxDepth: *maxDepth,
		Workers:  *workers,
		Seed:     renderSeed,
	}

	if *cacheDir != "" {
		cache, err := rowcache.Open(*cacheDir, rowcache.WithTTL(*cacheTTL))
		if err != nil {
			return fmt.Errorf("while opening row cache: %w", err)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				glog.Errorf("Error closing row cache: %v", err)
			}
		}()
		options.Cache = cache
	}

	progress := &debugz.Progress{}
	if *debugListen != "" {
		debugServer := &http.Server{
			Addr:    *debugListen,
			Handler: debugz.NewMux(progress),

			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("Debug server died: %v", err)
			}
		}()
		defer debugServer.Close()
	}

	progressFunc := progress.Update
	if *showProgress && term.IsTerminal(int(os.Stderr.Fd())) {
		progressFunc = terminalProgress(progress)
		defer fmt.Fprintf(os.Stderr, "\n")
	}

	start := time.Now()
	img, err := scene.RenderScene(ctx, pack.Scene, cam, options, progressFunc)
	if err != nil {
		return fmt.Errorf("while rendering scene: %w", err)
	}
	glog.Infof("Rendered %dx%d in %v", *width, *height, time.Since(start))

	if err := writeOutput(ctx, *output, "image/x-portable-pixmap", func(w io.Writer) error {
		return ppm.Write(w, img)
	}); err != nil {
		return err
	}

	if *pngOutput != "" {
		if err := writeOutput(ctx, *pngOutput, "image/png", func(w io.Writer) error {
			return encodePNG(w, img)
		}); err != nil {
			return err
		}
	}

	return nil
}

func installMonitoring() (func(), error) {
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:         *monitoringProject,
		MetricPrefix:      "lumen",
		ReportingInterval: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("while creating Stackdriver metrics exporter: %w", err)
	}
	if err := scene.RegisterViews(); err != nil {
		return nil, fmt.Errorf("while registering render views: %w", err)
	}
	if err := exporter.StartMetricsExporter(); err != nil {
		return nil, fmt.Errorf("while starting metrics exporter: %w", err)
	}

	traceOpts := []cloudtrace.Option{}
	if *monitoringProject != "" {
		traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
	}
	_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
	if err != nil {
		exporter.StopMetricsExporter()
		return nil, fmt.Errorf("while installing Cloud Trace pipeline: %w", err)
	}

	return func() {
		traceShutdown()
		exporter.Flush()
		exporter.StopMetricsExporter()
	}, nil
}

func loadPack(ctx context.Context) (*scenepack.Pack, error) {
	for _, name := range scenepack.BuiltinNames {
		if *sceneName == name {
			return scenepack.Builtin(name)
		}
	}

	pack, err := scenepack.Load(ctx, *sceneName)
	if err != nil {
		return nil, fmt.Errorf("while loading scene: %w", err)
	}
	return pack, nil
}

// cameraConfig applies the camera flags on top of the scene's own camera.
func cameraConfig(cfg camera.Config) camera.Config {
	if lookFrom.set {
		cfg.LookFrom = lookFrom.v
	}
	if lookAt.set {
		cfg.LookAt = lookAt.v
	}
	if vup.set {
		cfg.Up = vup.v
	}
	if *vfov > 0 {
		cfg.VerticalFOV = float32(*vfov)
	}
	if *aperture >= 0 {
		cfg.Aperture = float32(*aperture)
	}
	if *focusDistance > 0 {
		cfg.FocusDistance = float32(*focusDistance)
	}
	if cfg.FocusDistance == 0 {
		cfg.FocusDistance = vec3.SubVV(cfg.LookFrom, cfg.LookAt).Norm()
	}
	cfg.AspectRatio = float32(*width) / float32(*height)
	return cfg
}

func terminalProgress(progress *debugz.Progress) scene.ProgressFunction {
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
	return func(done, total int) {
		progress.Update(done, total)
		if done == total || limiter.Allow() {
			fmt.Fprintf(os.Stderr, "\r%d/%d %d%%", done, total, 100*done/total)
		}
	}
}

func writeOutput(ctx context.Context, destString, contentType string, write func(w io.Writer) error) error {
	dest, err := sink.Parse(destString)
	if err != nil {
		return fmt.Errorf("while parsing output destination: %w", err)
	}

	w, err := sink.Open(ctx, dest, contentType)
	if err != nil {
		return fmt.Errorf("while opening output: %w", err)
	}

	if err := write(w); err != nil {
		w.Abort()
		return fmt.Errorf("while writing %s: %w", dest, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("while closing %s: %w", dest, err)
	}

	glog.Infof("Wrote %s", dest)
	return nil
}

func encodePNG(w io.Writer, img *rgbimage.RGBImage) error {
	dc := gg.NewContextForImage(img.Image())
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("while encoding PNG: %w", err)
	}
	return nil
}
