// Package mq 提供进程内 GoChannel 消息队列实现.
// 单机部署和测试环境的默认选择，不依赖外部broker.
package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/filevault/pkg/configs"
)

const defaultGoChannelBuffer = 256

// init 注册 GoChannel 工厂.
func init() {
	RegisterFactory(configs.MQTypeGoChannel, goChannelFactory)
}

// goChannelFactory 创建进程内 Publisher & Subscriber，二者共享同一个 pubsub 实例.
func goChannelFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: defaultGoChannelBuffer,
			Persistent:          false,
		},
		logger,
	)

	return pubsub, pubsub, nil
}
