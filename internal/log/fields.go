package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldMethod      = "method"
	FieldURL         = "url"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldAttempt     = "attempt"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldEndpoint    = "endpoint"
	FieldCacheKey    = "cache_key"
	FieldPages       = "pages"
	FieldCount       = "count"
	FieldPeriod      = "period"
	FieldTxID        = "transaction_id"
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldWatermark   = "watermark"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentUpBank  = "upbank"
	ComponentFetch   = "fetch"
	ComponentCache   = "cache"
	ComponentStorage = "storage"
	ComponentSync    = "syncstate"
	ComponentSummary = "summary"
	ComponentFixer   = "fixer"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpPatch    = "patch"
	OpSummary  = "summary"
	OpCompare  = "compare"
	OpFix      = "fix"
	OpSync     = "sync"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields used when reporting a single transaction:
// date, description and display amount.
func (f LogFields) WithTransaction(id, date, desc, amount string) LogFields {
	f[FieldTxID] = id
	f[FieldDate] = date
	f[FieldDescription] = desc
	f[FieldAmount] = amount
	return f
}

// WithHTTPResponse adds outbound HTTP response fields
func (f LogFields) WithHTTPResponse(method, url string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldURL] = url
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
