package presencehandler

type PresenceResponse struct {
	Users []string `json:"users"`
} // @name PresenceResponse

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
} // @name HealthResponse
