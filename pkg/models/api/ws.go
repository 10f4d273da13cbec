package api

// WebSocket message types. The tag drives which Data schema the client
// parses.
const (
	WsTypeMetrics = "metrics"
	WsTypeStatus  = "status"
)

// WsMessage is the envelope for all WebSocket pushes.
type WsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WsStatus is the lightweight status payload pushed over WebSocket.
type WsStatus struct {
	UptimeSeconds uint64    `json:"uptime_seconds"`
	MemoryMB      float64   `json:"memory_mb"`
	CPUPercent    float64   `json:"cpu_percent"`
	API           APIStatus `json:"api"`
	WsClients     int       `json:"ws_clients"`
}

// NewMetricsMessage wraps a metrics response for the WebSocket stream.
func NewMetricsMessage(m MetricsResponse) WsMessage {
	return WsMessage{Type: WsTypeMetrics, Data: m}
}

// NewStatusMessage wraps a status payload for the WebSocket stream.
func NewStatusMessage(s WsStatus) WsMessage {
	return WsMessage{Type: WsTypeStatus, Data: s}
}
