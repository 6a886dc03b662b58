package model

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type AuthMeResponse struct {
	UserID  int64  `json:"userId"`
	LoginID string `json:"loginId"`
	Role    Role   `json:"role"`
}

type ItemEnvelope struct {
	Status string `json:"status"`
	Data   *Item  `json:"data"`
}

type ItemListEnvelope struct {
	Status string `json:"status"`
	Data   []Item `json:"data"`
}

type ItemChainEnvelope struct {
	Status string     `json:"status"`
	Data   *ItemChain `json:"data"`
}

type SLAEnvelope struct {
	Status string `json:"status"`
	Data   *SLA   `json:"data"`
}

type IncidentEnvelope struct {
	Status string    `json:"status"`
	Data   *Incident `json:"data"`
}

type IncidentListEnvelope struct {
	Status string     `json:"status"`
	Data   []Incident `json:"data"`
}

type ReportIncidentEnvelope struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Data    *ReportIncidentResult `json:"data"`
}

type MetricEnvelope struct {
	Status string  `json:"status"`
	Data   *Metric `json:"data"`
}

type MetricListEnvelope struct {
	Status string   `json:"status"`
	Data   []Metric `json:"data"`
}

type GenerateMetricEnvelope struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Data    *GenerateMetricResult `json:"data"`
}

type AlertEnvelope struct {
	Status string `json:"status"`
	Data   *Alert `json:"data"`
}

type AlertListEnvelope struct {
	Status string  `json:"status"`
	Data   []Alert `json:"data"`
}

type AlertIncidentsEnvelope struct {
	Status string          `json:"status"`
	Data   *AlertIncidents `json:"data"`
}

type ResolveAlertEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    *ResolveAlertResult `json:"data"`
}

type ManualAlertEnvelope struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    *ManualAlertResult `json:"data"`
}

type ComplianceReportEnvelope struct {
	Status string            `json:"status"`
	Data   *ComplianceReport `json:"data"`
}

type BatchSummaryEnvelope struct {
	Status string        `json:"status"`
	Data   *BatchSummary `json:"data"`
}

type UserListEnvelope struct {
	Status string `json:"status"`
	Data   []User `json:"data"`
}
