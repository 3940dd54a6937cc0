package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldMonths      = "months"
	FieldWindowStart = "window_start"
	FieldWindowEnd   = "window_end"
	FieldTotal       = "total"
	FieldCurrency    = "currency"
	FieldTxCount     = "tx_count"
	FieldTxType      = "tx_type"
	FieldAmount      = "amount"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentSavings = "savings"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentDynamo  = "dynamo"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentPayment = "payment"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpRecalculate   = "recalculate_total"
	OpInterestLast  = "interest_last_month"
	OpProgress      = "progress_this_month"
	OpInterestMonth = "interest_for_month"
	OpIncomeMonth   = "income_savings_for_month"
	OpProgressMonth = "progress_for_month"
	OpGrowth        = "monthly_growth"
	OpProjection    = "projection"
	OpRecord        = "record_transaction"
	OpWithdraw      = "withdraw"
	OpDeposit       = "deposit"
	OpProfile       = "profile"
	OpExport        = "export"
	OpShutdown      = "shutdown"
	OpStartup       = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
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

// WithUser adds the resolved user id
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithWindow adds inclusive epoch-millisecond window bounds
func (f LogFields) WithWindow(start, end int64) LogFields {
	f[FieldWindowStart] = start
	f[FieldWindowEnd] = end
	return f
}

// WithTotal adds an aggregated amount with its currency label
func (f LogFields) WithTotal(total decimal.Decimal, currency string) LogFields {
	f[FieldTotal] = total.String()
	if currency != "" {
		f[FieldCurrency] = currency
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
