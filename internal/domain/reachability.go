package domain

type Reachability struct {
	Endpoint  Endpoint `json:"endpoint"`
	Reachable bool     `json:"reachable"`
	RTTMillis float64  `json:"rtt_ms"`
	Error     string   `json:"error,omitempty"`
}
