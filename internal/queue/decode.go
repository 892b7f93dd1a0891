package queue

import (
	"encoding/json"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
)

// chatEvent is the wire shape of a Google Chat event as published to
// the queue. It is resolved into domain.InboundEvent exactly once here;
// nothing downstream touches the raw payload.
type chatEvent struct {
	Type    string `json:"type"`
	Message struct {
		Text       string `json:"text"`
		Name       string `json:"name"`
		CreateTime string `json:"createTime"`
		Sender     struct {
			DisplayName string `json:"displayName"`
			Email       string `json:"email"`
			Type        string `json:"type"`
		} `json:"sender"`
		Thread struct {
			Name      string `json:"name"`
			ThreadKey string `json:"threadKey"`
		} `json:"thread"`
	} `json:"message"`
	Space struct {
		Name string `json:"name"`
	} `json:"space"`
}

// DecodeEvent parses one queue payload into an InboundEvent.
func DecodeEvent(data []byte) (*domain.InboundEvent, error) {
	var raw chatEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewError(domain.ErrorTypeDecode, "queue.DecodeEvent", "invalid event payload", err)
	}

	return &domain.InboundEvent{
		EventType:   raw.Type,
		Text:        raw.Message.Text,
		MessageName: raw.Message.Name,
		SenderName:  raw.Message.Sender.DisplayName,
		SenderEmail: raw.Message.Sender.Email,
		SenderType:  raw.Message.Sender.Type,
		ThreadName:  raw.Message.Thread.Name,
		ThreadKey:   raw.Message.Thread.ThreadKey,
		SpaceName:   raw.Space.Name,
		CreateTime:  raw.Message.CreateTime,
	}, nil
}
