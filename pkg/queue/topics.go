// Package queue 定义消息主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：fv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：object(对象存储)、share(分享)、quota(配额)、audit(审计)
// 动作：存储相关(stored/deleted/accessed)、分享相关(created/revoked)

const (
	// 对象存储领域.
	TopicObjectStored   = "fv.object.stored"   // 密文已落地（本地缓存与可选远端副本）
	TopicObjectDeleted  = "fv.object.deleted"  // 文件被软删除，密文副本待回收
	TopicObjectAccessed = "fv.object.accessed" // 文件被解密访问（查看或下载）
	TopicObjectExpired  = "fv.object.expired"  // 文件因保留期到期被清理

	// 分享领域.
	TopicShareCreated  = "fv.share.created"  // 分享链接创建
	TopicShareRevoked  = "fv.share.revoked"  // 分享链接被吊销
	TopicShareAccessed = "fv.share.accessed" // 分享链接被访问

	// 配额领域.
	TopicQuotaExceeded = "fv.quota.exceeded" // 团队配额不足导致上传被拒绝

	// 审计领域.
	TopicAuditRecorded = "fv.audit.recorded" // 审计事件已记录
)

// 主题分组，用于批量订阅或权限控制.
var (
	// 对象存储相关主题集合.
	ObjectTopics = []string{
		TopicObjectStored, TopicObjectDeleted,
		TopicObjectAccessed, TopicObjectExpired,
	}

	// 分享相关主题集合.
	ShareTopics = []string{
		TopicShareCreated, TopicShareRevoked, TopicShareAccessed,
	}

	// 审计相关主题集合.
	AuditTopics = []string{
		TopicAuditRecorded,
	}
)
