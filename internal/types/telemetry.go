package types

// CloudWatch metric names and dimensions.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricReportsFired    = "ReportsFired"
	MetricAPILatency      = "APILatency"

	DimChannel  = "Channel"
	DimResult   = "Result"
	DimTask     = "Task"
	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"

	MetricNamespace = "LeanPulse"
)
