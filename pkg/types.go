package pkg

// ServiceSummary is the flat per-service view shared by the info and export
// commands and the dashboard.
type ServiceSummary struct {
	Cluster        string `json:"cluster"`
	ServiceName    string `json:"serviceName"`
	TaskDefinition string `json:"taskDefinition"`
	RunningCount   int32  `json:"runningCount"`
	DesiredCount   int32  `json:"desiredCount"`
	Status         string `json:"status"`
}
