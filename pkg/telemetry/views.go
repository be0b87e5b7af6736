package telemetry

import (
	semconvhttp "go.opentelemetry.io/otel/semconv/v1.37.0/httpconv"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Default views widen the standard HTTP instrumentation buckets to cover
// the large, slow transfers a copy proxy actually sees (multi-minute
// upstream fetches, multi-gigabyte bodies) rather than the short-request
// defaults most otelecho-style middleware ships with.
var (
	DefaultHTTPServerRequestDurationView = sdkmetric.NewView(
		sdkmetric.Instrument{
			Name:        semconvhttp.ServerRequestDuration{}.Name(),
			Description: semconvhttp.ServerRequestDuration{}.Description(),
			Kind:        sdkmetric.InstrumentKindHistogram,
			Unit:        semconvhttp.ServerRequestDuration{}.Unit(),
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: HTTPServerDurationBounds,
			},
		},
	)
	DefaultHTTPServerRequestBodySizeView = sdkmetric.NewView(
		sdkmetric.Instrument{
			Name:        semconvhttp.ServerRequestBodySize{}.Name(),
			Description: semconvhttp.ServerRequestBodySize{}.Description(),
			Kind:        sdkmetric.InstrumentKindHistogram,
			Unit:        semconvhttp.ServerRequestBodySize{}.Unit(),
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: SizeBoundaries,
			},
		},
	)
	DefaultHTTPServerResponseBodySizeView = sdkmetric.NewView(
		sdkmetric.Instrument{
			Name:        semconvhttp.ServerResponseBodySize{}.Name(),
			Description: semconvhttp.ServerResponseBodySize{}.Description(),
			Kind:        sdkmetric.InstrumentKindHistogram,
			Unit:        semconvhttp.ServerResponseBodySize{}.Unit(),
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: SizeBoundaries,
			},
		},
	)
)
