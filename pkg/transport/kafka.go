package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"colmet/pkg/config"
	"colmet/pkg/utils"
)

// Record headers set by the node.
const (
	HeaderHost    = "Host"
	HeaderSession = "Session"
)

// clientOpts translates the shared Kafka settings into client options.
func clientOpts(cfg *config.KafkaConfig) ([]kgo.Opt, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BrokerList()...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProduceRequestTimeout(cfg.Timeout),
	}
	if cfg.SASLUser != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.SASLUser,
			Pass: cfg.SASLPassword,
		}.AsMechanism()))
	}
	if cfg.TLS || cfg.CAFile != "" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.CAFile != "" {
			pem, err := os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("could not read CA cert file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificate found in %s", cfg.CAFile)
			}
			tlsConfig.RootCAs = pool
		}
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}
	return opts, nil
}

// ============================================================================
// Producer
// ============================================================================

// KafkaSender produces one Kafka record per batch, keyed by hostname.
type KafkaSender struct {
	cl      *kgo.Client
	topic   string
	session utils.Session
	timeout time.Duration
}

func NewKafkaSender(cfg *config.KafkaConfig, session utils.Session) (*KafkaSender, error) {
	opts, err := clientOpts(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, kgo.DefaultProduceTopic(cfg.Topic))
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	log.Infof("Producing to kafka topic %s on %v as %s", cfg.Topic, cfg.BrokerList(), session)
	return &KafkaSender{cl: cl, topic: cfg.Topic, session: session, timeout: cfg.Timeout}, nil
}

func newRecord(topic string, session utils.Session, payload []byte) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(session.Hostname),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: HeaderHost, Value: []byte(session.Hostname)},
			{Key: HeaderSession, Value: []byte(session.ID.String())},
		},
	}
}

// Send waits for the broker to acknowledge the batch.
func (s *KafkaSender) Send(ctx context.Context, payload []byte) error {
	if err := s.cl.ProduceSync(ctx, newRecord(s.topic, s.session, payload)).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Close flushes buffered records, giving up after the request timeout.
func (s *KafkaSender) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.cl.Flush(ctx)
	s.cl.Close()
	return err
}

// ============================================================================
// Consumer
// ============================================================================

// KafkaReceiver consumes batches as part of a consumer group. Offsets are
// committed only for messages passed to Commit.
type KafkaReceiver struct {
	cl *kgo.Client
}

func NewKafkaReceiver(cfg *config.KafkaConfig) (*KafkaReceiver, error) {
	opts, err := clientOpts(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.AutoCommitMarks(),
	)
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	log.Infof("Consuming kafka topic %s on %v in group %s", cfg.Topic, cfg.BrokerList(), cfg.Group)
	return &KafkaReceiver{cl: cl}, nil
}

func fromRecord(rec *kgo.Record) Message {
	m := Message{Payload: rec.Value, Hostname: string(rec.Key)}
	for _, h := range rec.Headers {
		switch h.Key {
		case HeaderHost:
			m.Hostname = string(h.Value)
		case HeaderSession:
			m.Session = string(h.Value)
		}
	}
	return m
}

func (r *KafkaReceiver) Receive(ctx context.Context) ([]Message, error) {
	for {
		fetches := r.cl.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// errors are retried internally, the ones returned here are only
		// reported
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Warnf("kafka fetch %s/%d: %v", topic, partition, err)
		})

		var msgs []Message
		fetches.EachRecord(func(rec *kgo.Record) {
			m := fromRecord(rec)
			m.ack = func() { r.cl.MarkCommitRecords(rec) }
			msgs = append(msgs, m)
		})
		if len(msgs) > 0 {
			return msgs, nil
		}
	}
}

func (r *KafkaReceiver) Commit(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		if m.ack != nil {
			m.ack()
		}
	}
	if err := r.cl.CommitMarkedOffsets(ctx); err != nil {
		return fmt.Errorf("kafka commit: %w", err)
	}
	return nil
}

func (r *KafkaReceiver) Close() error {
	r.cl.Close()
	return nil
}
