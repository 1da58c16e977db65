package types

// PoolResponse describes the endpoints waiting on the meet server for a partner
type PoolResponse struct {
	Size    int      `json:"size" example:"1"`
	Waiting []string `json:"waiting" example:"[\"203.0.113.1:4000\"]"`
}
