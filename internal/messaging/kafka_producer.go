package messaging

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"

	"scoring-service/internal/config"
)

// KafkaProducer Kafka生产者结构
type KafkaProducer struct {
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaProducer 创建新的Kafka生产者
func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_1_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &KafkaProducer{
		topic:    cfg.Topic,
		producer: producer,
	}, nil
}

// Close 关闭Kafka生产者
func (k *KafkaProducer) Close() error {
	return k.producer.Close()
}

// 事件类型常量
const (
	EventTypeVideoSubmitted = "video.submitted"
	EventTypeScoringStage   = "video.scoring.stage"
	EventTypeVideoScored    = "video.scored"
	EventTypeScoringFailed  = "video.score.failed"
	EventTypeRewardIssued   = "reward.issued"
	EventTypeRewardAdjusted = "reward.adjusted"
)

// MessageEvent Kafka消息事件结构
type MessageEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VideoSubmittedPayload 视频提交事件载荷
type VideoSubmittedPayload struct {
	SubmissionID string   `json:"submissionId"`
	UserID       string   `json:"userId"`
	Title        string   `json:"title"`
	Platforms    []string `json:"platforms"`
	SubmittedAt  string   `json:"submittedAt"`
}

// ScoringStagePayload 评分阶段事件载荷
type ScoringStagePayload struct {
	SubmissionID string `json:"submissionId"`
	Stage        string `json:"stage"`
	Progress     int    `json:"progress"`
	Detail       string `json:"detail"`
}

// VideoScoredPayload 评分完成事件载荷
type VideoScoredPayload struct {
	SubmissionID    string `json:"submissionId"`
	UserID          string `json:"userId"`
	ViralScore      int    `json:"viralScore"`
	CreditsRewarded int    `json:"creditsRewarded"`
	ScoredAt        string `json:"scoredAt"`
}

// ScoringFailedPayload 评分失败事件载荷
type ScoringFailedPayload struct {
	SubmissionID string `json:"submissionId"`
	ErrorCode    string `json:"errorCode"`
	Detail       string `json:"detail"`
	FailedAt     string `json:"failedAt"`
}

// RewardIssuedPayload Credits发放事件载荷
type RewardIssuedPayload struct {
	SubmissionID string `json:"submissionId"`
	UserID       string `json:"userId"`
	Amount       int    `json:"amount"`
	Reason       string `json:"reason"`
	IssuedAt     string `json:"issuedAt"`
}

// RewardAdjustedPayload 管理员调分事件载荷
type RewardAdjustedPayload struct {
	SubmissionID string `json:"submissionId"`
	OldScore     int    `json:"oldScore"`
	NewScore     int    `json:"newScore"`
	OldReward    int    `json:"oldReward"`
	NewReward    int    `json:"newReward"`
	CreditsDelta int    `json:"creditsDelta"`
	AdjustedAt   string `json:"adjustedAt"`
}

// SendVideoSubmitted 发送视频提交事件
func (k *KafkaProducer) SendVideoSubmitted(payload VideoSubmittedPayload) error {
	return k.SendEvent(EventTypeVideoSubmitted, payload)
}

// SendScoringStage 发送评分阶段事件
func (k *KafkaProducer) SendScoringStage(payload ScoringStagePayload) error {
	return k.SendEvent(EventTypeScoringStage, payload)
}

// SendVideoScored 发送评分完成事件
func (k *KafkaProducer) SendVideoScored(payload VideoScoredPayload) error {
	return k.SendEvent(EventTypeVideoScored, payload)
}

// SendScoringFailed 发送评分失败事件
func (k *KafkaProducer) SendScoringFailed(payload ScoringFailedPayload) error {
	return k.SendEvent(EventTypeScoringFailed, payload)
}

// SendRewardIssued 发送Credits发放事件
func (k *KafkaProducer) SendRewardIssued(payload RewardIssuedPayload) error {
	return k.SendEvent(EventTypeRewardIssued, payload)
}

// SendRewardAdjusted 发送管理员调分事件
func (k *KafkaProducer) SendRewardAdjusted(payload RewardAdjustedPayload) error {
	return k.SendEvent(EventTypeRewardAdjusted, payload)
}

// SendEvent 发送事件
func (k *KafkaProducer) SendEvent(eventType string, payload interface{}) error {
	event := MessageEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.StringEncoder(jsonData),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return err
	}

	log.Printf("消息发送成功: 主题=%s, 分区=%d, 偏移量=%d, 类型=%s",
		k.topic, partition, offset, eventType)
	return nil
}
