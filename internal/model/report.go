package model

type ComplianceRow struct {
	Item         Item    `json:"item"`
	Limit        int     `json:"limit"`
	Metric       *Metric `json:"metric,omitempty"`
	ActiveAlerts int     `json:"active_alerts"`
}

type ComplianceReport struct {
	Year   int               `json:"year"`
	Month  int               `json:"month"`
	Rows   []ComplianceRow   `json:"rows"`
	Totals map[Semaphore]int `json:"totals"`
	NoData int               `json:"no_data"`
}
