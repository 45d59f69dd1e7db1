package scene

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyScene = tag.MustNewKey("scene")

	pixelsRendered = stats.Int64("lumen/pixels_rendered", "Pixels whose samples have all been traced", stats.UnitDimensionless)
	samplesTraced  = stats.Int64("lumen/samples_traced", "Primary camera rays traced", stats.UnitDimensionless)
	rayBounces     = stats.Int64("lumen/ray_bounces", "Scattering events followed by the integrator", stats.UnitDimensionless)
	rowsFromCache  = stats.Int64("lumen/rows_from_cache", "Rows restored from the row cache instead of rendered", stats.UnitDimensionless)
)

var Views = []*view.View{
	{
		Name:        "lumen/pixels_rendered",
		Description: "Counter of pixels that have been rendered",
		TagKeys:     []tag.Key{keyScene},
		Measure:     pixelsRendered,
		Aggregation: view.Sum(),
	},
	{
		Name:        "lumen/samples_traced",
		Description: "Counter of primary rays that have been traced",
		TagKeys:     []tag.Key{keyScene},
		Measure:     samplesTraced,
		Aggregation: view.Sum(),
	},
	{
		Name:        "lumen/ray_bounces",
		Description: "Counter of scattering events",
		TagKeys:     []tag.Key{keyScene},
		Measure:     rayBounces,
		Aggregation: view.Sum(),
	},
	{
		Name:        "lumen/rows_from_cache",
		Description: "Counter of rows restored from the row cache",
		TagKeys:     []tag.Key{keyScene},
		Measure:     rowsFromCache,
		Aggregation: view.Sum(),
	},
}

// RegisterViews makes the renderer's metrics available to exporters.
func RegisterViews() error {
	return view.Register(Views...)
}

func recordRow(ctx context.Context, sceneName string, pixels, samples, bounces int64) {
	stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Upsert(keyScene, sceneName)),
		stats.WithMeasurements(
			pixelsRendered.M(pixels),
			samplesTraced.M(samples),
			rayBounces.M(bounces),
		))
}

func recordCachedRow(ctx context.Context, sceneName string, pixels int64) {
	stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Upsert(keyScene, sceneName)),
		stats.WithMeasurements(
			pixelsRendered.M(pixels),
			rowsFromCache.M(1),
		))
}
