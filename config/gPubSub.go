package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubMessage is the payload published when a closing report changes state.
type PubSubMessage struct {
	TenantCode    string    `json:"comp_cd"`
	CloseDate     string    `json:"close_date"`
	Action        string    `json:"action"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationId string    `json:"correlation_id,omitempty"`
}

// PubSubPublisher publishes to PUBSUB_TOPIC. A nil publisher drops messages.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// NewPubSubPublisher returns (nil, nil) when PUBSUB_TOPIC is not configured.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewPubSubPublisher(ctx context.Context) (*PubSubPublisher, error) {
	topicName := strings.TrimSpace(os.Getenv("PUBSUB_TOPIC"))
	if topicName == "" {
		return nil, nil
	}
	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", projectID, err)
	}

	t := c.Topic(topicName)
	ok, err := t.Exists(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if !ok {
		if t, err = c.CreateTopic(ctx, topicName); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	log.Printf("pubsub publisher ready (project_id=%s topic=%s)", projectID, topicName)
	return &PubSubPublisher{client: c, topic: t}, nil
}

// Publish blocks until the server acknowledges the message or ctx is done.
func (p *PubSubPublisher) Publish(ctx context.Context, msg PubSubMessage) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"action":  msg.Action,
			"comp_cd": msg.TenantCode,
		},
	})
	_, err = result.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.topic.Stop()
	return p.client.Close()
}
