package chat

// ThreadRef references the thread a message belongs to. Exactly one of
// Name or ThreadKey is set on outbound requests; responses carry both.
type ThreadRef struct {
	Name      string `json:"name,omitempty"`
	ThreadKey string `json:"threadKey,omitempty"`
}

// MessageRequest is the outbound message body for the Chat API.
type MessageRequest struct {
	Text   string     `json:"text"`
	Thread *ThreadRef `json:"thread,omitempty"`
}

// MessageResponse is the Chat API's reply to a message create.
type MessageResponse struct {
	Name       string     `json:"name"`
	CreateTime string     `json:"createTime"`
	Thread     *ThreadRef `json:"thread,omitempty"`
}

// ErrorResponse is the error envelope the Chat API returns on non-2xx.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
