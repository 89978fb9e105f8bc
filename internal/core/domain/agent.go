package domain

// AgentStatus is what the identity agent reports about itself at startup
type AgentStatus struct {
	Label   string `json:"label"`
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
}
