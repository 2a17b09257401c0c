package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/config"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

type MessageQueue struct {
	client      *redis.Client
	channel     string
	historySize int64
	log         *logrus.Logger
}

func NewMessageQueue(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) (*MessageQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	log.Info("Redis连接成功")

	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 1000
	}
	return &MessageQueue{
		client:      client,
		channel:     cfg.Channel,
		historySize: historySize,
		log:         log,
	}, nil
}

// HistoryKey 设备原始行列表
func HistoryKey(deviceID string) string {
	return fmt.Sprintf("mw28912:%s:lines", deviceID)
}

// StateKey 设备最新字段值哈希
func StateKey(deviceID string) string {
	return fmt.Sprintf("mw28912:%s:state", deviceID)
}

// Publish 发布消息到Redis
func (mq *MessageQueue) Publish(ctx context.Context, data *protocol.Telemetry) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	// 发布到Redis Pub/Sub
	if err := mq.client.Publish(ctx, mq.channel, jsonData).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}

	// 同时保存到Redis List（作为持久化备份），只保留最近 historySize 条
	listKey := HistoryKey(data.DeviceID)
	pipe := mq.client.TxPipeline()
	pipe.LPush(ctx, listKey, jsonData)
	pipe.LTrim(ctx, listKey, 0, mq.historySize-1)
	if len(data.Values) > 0 {
		pipe.HSet(ctx, StateKey(data.DeviceID), data.Values)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		mq.log.Warnf("保存到List失败: %v", err)
		return fmt.Errorf("保存设备数据失败: %w", err)
	}

	return nil
}

// Close 关闭连接
func (mq *MessageQueue) Close() error {
	return mq.client.Close()
}
