package websocket

import (
	"encoding/json"
	"time"

	"arbor-server/internal/domain"
)

type MessageType string

const (
	TypeNodeCreated  MessageType = "node_created"
	TypeNodeUpdated  MessageType = "node_updated"
	TypeNodeDeleted  MessageType = "node_deleted"
	TypeNodeMoved    MessageType = "node_moved"
	TypeTreeReplaced MessageType = "tree_replaced"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NodeEventPayload carries a created or updated node to the user's other
// devices. DeviceID names the originating device so receivers can ignore
// their own echo.
type NodeEventPayload struct {
	Node     *domain.Node `json:"node"`
	ParentID *string      `json:"parentId,omitempty"`
	DeviceID string       `json:"deviceId"`
}

type NodeDeletedPayload struct {
	NodeID   string `json:"nodeId"`
	DeviceID string `json:"deviceId"`
}

type NodeMovedPayload struct {
	Node        *domain.Node `json:"node"`
	NewParentID *string      `json:"newParentId,omitempty"`
	NewIndex    *int         `json:"newIndex,omitempty"`
	DeviceID    string       `json:"deviceId"`
}

// TreeReplacedPayload announces a whole-tree import; receivers refetch the
// forest instead of patching incrementally.
type TreeReplacedPayload struct {
	DeviceID string `json:"deviceId"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
