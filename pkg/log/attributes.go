// Package log defines standard attribute keys for pipeline operations.
//
// Using these standard keys enables consistent log analysis and debugging of
// downloads, joins, and dataset transformations across the codebase. The keys
// follow a hierarchical naming convention (e.g. "pipeline.step", "data.rows")
// to support structured filtering.

package log

// Pipeline and Operation Context
// These attributes identify the pipeline step and the operation being performed.
const (
	// StepKey identifies the pipeline step emitting the log record.
	// Examples: "download-crime", "download-census", "join"
	StepKey = "pipeline.step"

	// OperationKey specifies the operation being performed within a step.
	// Standard values: "download", "extract", "validate", "join", "export"
	OperationKey = "pipeline.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "crime", "census", "spatial", "join", "store"
	ComponentKey = "pipeline.component"
)

// Data Shape and Location
// These attributes describe the data being processed and where it lives.
const (
	// RowsKey indicates the number of rows processed or produced.
	RowsKey = "data.rows"

	// ColumnsKey indicates the number of columns in a table.
	ColumnsKey = "data.columns"

	// PathKey records the local file path being read or written.
	PathKey = "data.path"

	// URLKey records the remote URL being fetched.
	URLKey = "data.url"

	// BytesKey records a payload or file size in bytes.
	BytesKey = "data.bytes"

	// YearKey records the data year being fetched or joined.
	YearKey = "data.year"

	// GEOIDKey records a census tract GEOID.
	GEOIDKey = "data.geoid"
)

// Join and Quality Metrics
const (
	// MatchedKey records the number of records matched to a census tract.
	MatchedKey = "join.matched"

	// MatchRateKey records the spatial join match rate in [0, 1].
	MatchRateKey = "join.match_rate"

	// TractsKey records the number of distinct tracts involved.
	TractsKey = "join.tracts"

	// MissingKey records a count of missing values.
	MissingKey = "quality.missing"

	// DuplicatesKey records a count of duplicate rows.
	DuplicatesKey = "quality.duplicates"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds for longer
	// operations such as full-dataset downloads.
	DurationSecondsKey = "perf.duration_seconds"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "DownloadError", "SchemaError", "ValidationError"
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated by the error logging handler.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute value constants for common operations.
const (
	OperationDownload = "download"
	OperationExtract  = "extract"
	OperationValidate = "validate"
	OperationJoin     = "join"
	OperationExport   = "export"
	OperationCleanup  = "cleanup"
)
