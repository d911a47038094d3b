// Package audit 提供异步审计事件记录.
// 事件进入有界队列后由后台协程消费：写入结构化日志，并可选发布到消息队列.
// 队列满时直接丢弃并计数，任何情况下不阻塞请求路径.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/filevault/pkg/configs"
	mqc "github.com/yeisme/filevault/pkg/internal/storage/mq"
	"github.com/yeisme/filevault/pkg/metrics"
	"github.com/yeisme/filevault/pkg/queue"
)

// 审计动作常量.
const (
	ActionFileUploaded   = "file.uploaded"
	ActionFileDownloaded = "file.downloaded"
	ActionFileViewed     = "file.viewed"
	ActionFileDeleted    = "file.deleted"
	ActionFileExpired    = "file.expired"
	ActionFileVerified   = "file.verified"
	ActionShareCreated   = "share.created"
	ActionShareUpdated   = "share.updated"
	ActionShareRevoked   = "share.revoked"
	ActionShareAccessed  = "share.accessed"
	ActionQuotaRejected  = "quota.rejected"
)

// Event 单条审计事件.
type Event struct {
	Action     string
	ActorID    string
	FileID     string
	ShareID    string
	Detail     string
	OccurredAt time.Time
}

// Recorder 审计事件接收端.
type Recorder interface {
	// Record 提交事件，保证不阻塞调用方.
	Record(ev Event)
	// Close 停止接收并等待队列排空.
	Close() error
}

// NopRecorder 丢弃所有事件，用于审计关闭时.
type NopRecorder struct{}

func (NopRecorder) Record(Event) {}

func (NopRecorder) Close() error { return nil }

// AsyncRecorder 有界队列 + 单消费协程的审计记录器.
type AsyncRecorder struct {
	logger    *zerolog.Logger
	mq        *mqc.Client
	publishMQ bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewRecorder 按配置构建 Recorder. 审计关闭时返回 NopRecorder.
// mq 可以为 nil，此时只写日志.
func NewRecorder(cfg *configs.AuditConfig, logger *zerolog.Logger, mq *mqc.Client) Recorder {
	if !cfg.Enabled {
		return NopRecorder{}
	}

	r := &AsyncRecorder{
		logger:    logger,
		mq:        mq,
		publishMQ: cfg.PublishMQ && mq != nil,
		events:    make(chan Event, cfg.QueueSize),
		done:      make(chan struct{}),
	}

	go r.drain()

	return r
}

// Record 非阻塞提交. 队列满或记录器已关闭时丢弃并计数.
func (r *AsyncRecorder) Record(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.AuditDropped.Inc()

		return
	}

	select {
	case r.events <- ev:
	default:
		metrics.AuditDropped.Inc()
	}
}

// Close 关闭事件通道并等待后台协程处理完剩余事件.
// 关闭后的 Record 调用安全，事件被丢弃.
func (r *AsyncRecorder) Close() error {
	r.closeOnce.Do(func() {
		// 写锁排他，保证没有进行中的发送后才关闭通道
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()

		<-r.done
	})

	return nil
}

// drain 消费队列：结构化日志 + 可选 MQ 发布. 单协程保证事件按提交顺序落地.
func (r *AsyncRecorder) drain() {
	defer close(r.done)

	for ev := range r.events {
		r.logger.Info().
			Str("audit_action", ev.Action).
			Str("actor", ev.ActorID).
			Str("file_id", ev.FileID).
			Str("share_id", ev.ShareID).
			Str("detail", ev.Detail).
			Time("occurred_at", ev.OccurredAt).
			Msg("audit event")

		if !r.publishMQ {
			continue
		}

		msg, err := queue.NewWatermillMessage(queue.TopicAuditRecorded, queue.AuditRecordedPayload{
			Action:  ev.Action,
			ActorID: ev.ActorID,
			FileID:  ev.FileID,
			ShareID: ev.ShareID,
			Detail:  ev.Detail,
		}, queue.WithProducer("filevault"))
		if err != nil {
			r.logger.Warn().Err(err).Msg("encode audit event failed")

			continue
		}

		if err := r.mq.Publish(context.Background(), queue.TopicAuditRecorded, msg); err != nil {
			r.logger.Warn().Err(err).Msg("publish audit event failed")
		}
	}
}
