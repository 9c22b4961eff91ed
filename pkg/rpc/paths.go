package rpc

// ornode REST paths.
const (
	PutProposalPath  = "/v1/putProposal"
	GetProposalPath  = "/v1/getProposal"
	GetProposalsPath = "/v1/getProposals"
	GetPeriodNumPath = "/v1/getPeriodNum"
	WebsocketPath    = "/v1/ws"
	HealthPath       = "/health"
	MetricsPath      = "/metrics"
)
