// Package sns implements an AWS SNS event publisher.
package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// Config selects the region, default topic and optional static credentials.
type Config struct {
	TopicARN        string `mapstructure:"topic_arn"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// snsClient is the subset of the SNS client used here.
type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher publishes JSON payloads to SNS topics.
type Publisher struct {
	topicARN string
	client   snsClient
	logger   *zap.Logger
}

// New loads AWS configuration and builds a publisher. Without static keys the
// default credential chain applies.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("sns topic arn is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("sns region is required")
	}
	loadOpts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(creds))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newWithClient(cfg.TopicARN, sns.NewFromConfig(awsCfg), logger), nil
}

func newWithClient(topicARN string, client snsClient, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{topicARN: topicARN, client: client, logger: logger}
}

type typed interface {
	EventType() string
}

// Publish marshals the payload to JSON and publishes it. An empty topic
// uses the configured topic ARN.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		topic = p.topicARN
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	input := &sns.PublishInput{
		TopicArn: aws.String(topic),
		Message:  aws.String(string(data)),
	}
	if ev, ok := payload.(typed); ok {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.EventType()),
			},
		}
	}
	resp, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("send message to sns: %w", err)
	}
	id := aws.ToString(resp.MessageId)
	p.logger.Debug("sns event delivered", zap.String("message_id", id))
	return id, nil
}
