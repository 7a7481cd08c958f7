package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	IngestionDuration metric.Float64Histogram
	IngestionFailures metric.Int64Counter
	ChunksIndexed     metric.Int64Counter
	RetrievalCounter  metric.Int64Counter
	TokensStreamed    metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docqa-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"docqa.ingest.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionFailures, err := meter.Int64Counter(
		"docqa.ingest.failures",
		metric.WithDescription("Terminal ingestion failures"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"docqa.chunks.indexed",
		metric.WithDescription("Chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	retrievalCounter, err := meter.Int64Counter(
		"docqa.retrievals.total",
		metric.WithDescription("Similarity queries issued"),
	)
	if err != nil {
		return nil, err
	}

	tokensStreamed, err := meter.Int64Counter(
		"docqa.tokens.streamed",
		metric.WithDescription("Model token chunks streamed to callers"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		IngestionDuration: ingestionDuration,
		IngestionFailures: ingestionFailures,
		ChunksIndexed:     chunksIndexed,
		RetrievalCounter:  retrievalCounter,
		TokensStreamed:    tokensStreamed,
	}, nil
}
