package dto

type HealthResponse struct {
	Status        string `json:"status"`
	DB            string `json:"db"`
	Redis         string `json:"redis"`
	LatestVersion string `json:"latest_version,omitempty"`
}
