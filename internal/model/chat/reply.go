package chat

// Reply is the result of a single chat exchange.
type Reply struct {
	Response     string `json:"response"`
	ResponseHTML string `json:"response_html"`
	SessionID    string `json:"session_id"`
}
