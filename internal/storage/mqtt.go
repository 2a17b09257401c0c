package storage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/config"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

var (
	// ErrNotConnected 客户端未连接时发布
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed 首次连接失败
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed 发布失败或超时
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic 主题段为空或含有 MQTT 通配符/分隔符
	ErrInvalidTopic = errors.New("mqtt: invalid topic segment")
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // 毫秒
	defaultKeepAlive         = 60 * time.Second
)

// mqttClient 发布器用到的 pahomqtt.Client 方法
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher 把解析结果发布到 MQTT
//
// 整行 JSON 发到 <prefix>/<device>/telemetry，每个字段的值作为 retained
// 消息发到 <prefix>/<device>/field/<name>。
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
	log    *logrus.Logger
}

// NewMQTTPublisher 连接 broker
func NewMQTTPublisher(cfg config.MQTTConfig, log *logrus.Logger) (*MQTTPublisher, error) {
	opts := buildClientOptions(cfg)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warnf("MQTT连接断开: %v", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.Info("MQTT连接成功")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return newMQTTPublisher(client, cfg, log), nil
}

func newMQTTPublisher(client mqttClient, cfg config.MQTTConfig, log *logrus.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    byte(cfg.QoS),
		log:    log,
	}
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// TelemetryTopic 整行数据的主题
func (p *MQTTPublisher) TelemetryTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", p.prefix, deviceID)
}

// FieldTopic 单个字段的主题
func (p *MQTTPublisher) FieldTopic(deviceID, name string) string {
	return fmt.Sprintf("%s/%s/field/%s", p.prefix, deviceID, name)
}

func (p *MQTTPublisher) Publish(ctx context.Context, data *protocol.Telemetry) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	if !validTopicSegment(data.DeviceID) {
		return fmt.Errorf("%w: device %q", ErrInvalidTopic, data.DeviceID)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	if err := p.publish(ctx, p.TelemetryTopic(data.DeviceID), payload, false); err != nil {
		return err
	}
	for name, value := range data.Values {
		// 字段名来自设备，不能让它改变主题层级
		if !validTopicSegment(name) {
			p.log.Warnf("跳过非法主题字段: %q", name)
			continue
		}
		if err := p.publish(ctx, p.FieldTopic(data.DeviceID, name), []byte(value), true); err != nil {
			return err
		}
	}
	return nil
}

// validTopicSegment 单个主题层级：非空，不含 '/'、'+'、'#' 和 NUL，且为合法 UTF-8
func validTopicSegment(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	return !strings.ContainsAny(s, "/+#\x00")
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, p.qos, retained, payload)

	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}
