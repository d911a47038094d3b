package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 对象存储领域 --------------------------

// ObjectRef 标识密文对象的存储位置与基础元数据.
type ObjectRef struct {
	Bucket      string `json:"bucket,omitempty"`
	ObjectKey   string `json:"object_key"`
	Size        int64  `json:"size,omitempty"`
	Hash        string `json:"hash,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ObjectStoredPayload 密文已写入本地缓存与可选远端副本.
type ObjectStoredPayload struct {
	Object   ObjectRef `json:"object"`
	FileID   string    `json:"file_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	TeamID   string    `json:"team_id,omitempty"`
	FileName string    `json:"file_name,omitempty"`
}

// ObjectDeletedPayload 文件被软删除.
type ObjectDeletedPayload struct {
	Object  ObjectRef `json:"object"`
	FileID  string    `json:"file_id"`
	ActorID string    `json:"actor_id,omitempty"`
	Expired bool      `json:"expired,omitempty"` // 是否由保留期到期触发
}

// ObjectAccessedPayload 文件被解密访问.
type ObjectAccessedPayload struct {
	Object   ObjectRef `json:"object"`
	FileID   string    `json:"file_id"`
	ActorID  string    `json:"actor_id,omitempty"`
	Mode     string    `json:"mode,omitempty"` // view 或 download
	Verified bool      `json:"verified"`       // 密文哈希校验是否通过
}

// -------------------------- 分享领域 --------------------------

// SharePayload 分享链接生命周期事件.
type SharePayload struct {
	ShareID   string `json:"share_id"`
	FileID    string `json:"file_id"`
	ActorID   string `json:"actor_id,omitempty"`
	IsPrivate bool   `json:"is_private,omitempty"`
}

// ShareAccessedPayload 分享链接被访问.
type ShareAccessedPayload struct {
	ShareID     string `json:"share_id"`
	FileID      string `json:"file_id"`
	ActorID     string `json:"actor_id,omitempty"` // 私有分享时为访问者
	Mode        string `json:"mode,omitempty"`
	AccessCount int64  `json:"access_count,omitempty"`
}

// -------------------------- 配额领域 --------------------------

// QuotaExceededPayload 配额不足导致上传被拒绝.
type QuotaExceededPayload struct {
	TeamID    string `json:"team_id"`
	Requested int64  `json:"requested"`
	Used      int64  `json:"used,omitempty"`
	Limit     int64  `json:"limit,omitempty"`
}

// -------------------------- 审计领域 --------------------------

// AuditRecordedPayload 审计事件镜像，供外部消费方落库或告警.
type AuditRecordedPayload struct {
	Action  string `json:"action"`
	ActorID string `json:"actor_id,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	ShareID string `json:"share_id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
