//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"job_applier/internal/domain"
	"job_applier/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_StatusEvent() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-status",
		RoutingKey: "test-routing-key-status",
		QueueName:  "test-queue-status",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	rec := &domain.ApplicationRecord{
		Posting: domain.Posting{
			Fingerprint: "fp-1",
			Title:       "Go Engineer",
			Company:     "Acme",
			URL:         "https://example/1",
		},
		Status:           domain.StatusGenerated,
		ResumeVariantRef: utils.Ptr("generated_resumes/resume_x.md"),
	}

	err = pub.PublishStatus(s.ctx, rec, domain.StatusTailored)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received StatusEvent
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("fp-1", received.Fingerprint)
	s.Equal("Go Engineer", received.JobTitle)
	s.Equal("Acme", received.Company)
	s.Equal(domain.StatusTailored, received.From)
	s.Equal(domain.StatusGenerated, received.To)
	s.Equal("generated_resumes/resume_x.md", received.ResumeVariantRef)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_OmitsEmptyVariantRef() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-novariant",
		RoutingKey: "test-routing-key-novariant",
		QueueName:  "test-queue-novariant",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	rec := &domain.ApplicationRecord{
		Posting: domain.Posting{
			Fingerprint: "fp-2",
			Title:       "Go Engineer",
			Company:     "Acme",
		},
		Status: domain.StatusEligible,
	}

	err = pub.PublishStatus(s.ctx, rec, domain.StatusDiscovered)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)
	s.NotContains(string(msg.Body), "resume_variant_ref")
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
