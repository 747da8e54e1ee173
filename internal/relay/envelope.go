package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType 标识信封种类。
type MessageType string

const (
	TypeRegister  MessageType = "register"
	TypeTrade     MessageType = "trade"
	TypeExport    MessageType = "export"
	TypePortfolio MessageType = "portfolio"
	TypeStatus    MessageType = "status"
	TypeBalance   MessageType = "balance"
	TypeHeartbeat MessageType = "heartbeat"
	TypePing      MessageType = "ping"
	TypeResponse  MessageType = "response"
	TypeError     MessageType = "error"
	TypeEvent     MessageType = "event"
)

// Envelope 为云端与本地之间 WebSocket 上的 JSON 信封。
// 每个入站命令必须恰好产生一个 id 匹配的 response/error 信封；
// 此外允许主动发送 event 信封同步状态。
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TradeCommand 为 trade 命令的载荷。
type TradeCommand struct {
	Action    string `json:"action"`
	StockCode string `json:"stock_code"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price,omitempty"`
}

// ExportCommand 为 export 命令的载荷。
type ExportCommand struct {
	DataType string `json:"data_type"`
}

// RegisterPayload 为本地在连接建立后上报的注册信息。
type RegisterPayload struct {
	ServiceType  string   `json:"service_type"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
}

// AlivePayload 为 heartbeat/ping 的应答载荷。
type AlivePayload struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload 为 error 信封的载荷。消息面向云端看板展示。
type ErrorPayload struct {
	Message string `json:"message"`
}

// EventPayload 为主动上报的事件载荷。
type EventPayload struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEnvelope 创建带随机 id 的信封。
func NewEnvelope(t MessageType, source, target string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("relay: 序列化载荷失败: %w", err)
	}
	return Envelope{
		Type:      t,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    target,
		Data:      raw,
	}, nil
}

// Response 构造对命令的成功应答，沿用命令 id。
func Response(cmd Envelope, source string, payload interface{}) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ErrorResponse(cmd, source, fmt.Sprintf("序列化应答失败: %v", err))
	}
	return Envelope{
		Type:      TypeResponse,
		ID:        cmd.ID,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    cmd.Source,
		Data:      raw,
	}
}

// ErrorResponse 构造对命令的错误应答，沿用命令 id。
func ErrorResponse(cmd Envelope, source, message string) Envelope {
	raw, _ := json.Marshal(ErrorPayload{Message: message})
	return Envelope{
		Type:      TypeError,
		ID:        cmd.ID,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    cmd.Source,
		Data:      raw,
	}
}

// Event 构造主动上报的事件信封。
func Event(kind, source, target string, payload interface{}) (Envelope, error) {
	return NewEnvelope(TypeEvent, source, target, EventPayload{Event: kind, Payload: payload})
}
