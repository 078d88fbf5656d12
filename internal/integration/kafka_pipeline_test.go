//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/civic-problem-map/internal/adapter/kafka"
	"github.com/couchcryptid/civic-problem-map/internal/adapter/sqlite"
	"github.com/couchcryptid/civic-problem-map/internal/config"
	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/couchcryptid/civic-problem-map/internal/observability"
	"github.com/couchcryptid/civic-problem-map/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

// sinkMessage holds a deserialized message read from the sink topic.
type sinkMessage struct {
	Problem domain.ReportedProblem
	Key     string
	Value   []byte
	Headers map[string]string
}

// readSink reads a single message from the sink consumer and deserializes it.
func readSink(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	sm := sinkMessage{Key: string(msg.Key), Value: msg.Value, Headers: headers}
	if len(msg.Value) > 0 {
		require.NoError(t, json.Unmarshal(msg.Value, &sm.Problem), "unmarshal sink message")
	}
	return sm
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor) and
// kafka.Writer (loader) round-trip a problem through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := loadMockData(t)[0] // rp-001, pending pothole

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("rp-001"), Value: payload}))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("rp-001"), raw.Key)
	assert.JSONEq(t, string(payload), string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	change, err := pipeline.NewTransformer(nil, discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.ProblemChange{change}))

	sm := readSink(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "rp-001", sm.Key)
	assert.Equal(t, "pending", sm.Headers["status"])
	_, err = time.Parse(time.RFC3339, sm.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
	assert.Equal(t, domain.StatusPending, sm.Problem.Status)
	assert.Equal(t, "pavimentacao", sm.Problem.Category)
}

// TestPipelineEndToEnd wires Reader -> Transformer -> {SQLite, Writer} with real
// Kafka, then checks the read model, the republished feed, and the markers.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	records := loadMockData(t)
	msgs := make([]kafkago.Message, 0, len(records)+2)
	for _, rec := range records {
		msgs = append(msgs, kafkago.Message{Value: rec})
	}
	// Poison pill, then a deletion of rp-006.
	msgs = append(msgs,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("rp-006")},
	)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	metrics := observability.NewMetricsForTesting()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "problems.db"), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, pipeline.NewTransformer(nil, discardLogger()), pipeline.FanoutLoader{store, writer}, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Every valid record plus the tombstone reaches the sink.
	consumer := sinkConsumer(t, broker)
	received := make([]sinkMessage, 0, len(records)+1)
	for len(received) < len(records)+1 {
		received = append(received, readSink(ctx, t, consumer))
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	last := received[len(received)-1]
	assert.Equal(t, "rp-006", last.Key)
	assert.Empty(t, last.Value)
	assert.Equal(t, "true", last.Headers["deleted"])

	problems, err := store.List(ctx, domain.ProblemFilter{})
	require.NoError(t, err)
	require.Len(t, problems, len(records)-1)

	_, err = store.Get(ctx, "rp-006")
	require.ErrorIs(t, err, domain.ErrNotFound)

	markers := domain.BuildMarkers(domain.GroupProblems(problems, domain.DefaultProximityMeters))
	ids := make([][]string, len(markers))
	for i, m := range markers {
		ids[i] = m.ProblemIDs
	}
	assert.Equal(t, [][]string{
		{"rp-001", "rp-002"},
		{"rp-003"},
		{"rp-004", "rp-005"},
		{"rp-009"},
		{"rp-010"},
	}, ids)
	assert.NoError(t, p.CheckReadiness(ctx))
}
