package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/workflow/model"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func startConsumer(t *testing.T, rdb *redis.Client, retryLimit int, handler MessageHandler) *Consumer {
	t.Helper()
	c := NewConsumer(rdb, ConsumerConfig{
		Stream:       StreamWorkflowJobs,
		Group:        ConsumerGroupWorkflowWorker,
		ConsumerName: "worker-1",
		BlockTimeout: 20 * time.Millisecond,
		RetryLimit:   retryLimit,
	})
	c.RegisterHandler(MessageTypeWorkflowJob, handler)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c
}

func pendingCount(t *testing.T, rdb *redis.Client) int64 {
	t.Helper()
	p, err := rdb.XPending(context.Background(), string(StreamWorkflowJobs), string(ConsumerGroupWorkflowWorker)).Result()
	if err != nil {
		return -1
	}
	return p.Count
}

func TestWorkflowJobRoundTrip(t *testing.T) {
	rdb := newRedis(t)

	var mu sync.Mutex
	var got []WorkflowJobMessage
	startConsumer(t, rdb, 3, func(ctx context.Context, msg *Message) error {
		var job WorkflowJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, job)
		mu.Unlock()
		return nil
	})

	p := NewProducer(rdb, 0)
	id, err := p.PublishWorkflowJob(context.Background(), &WorkflowJobMessage{
		RunID:     "run-1",
		UserID:    "u-1",
		RequestID: "req-1",
		Kind:      model.RunKindPredefined,
		Name:      "paper_review",
		Params:    map[string]any{"paper": "text"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	job := got[0]
	mu.Unlock()
	assert.Equal(t, "run-1", job.RunID)
	assert.Equal(t, model.RunKindPredefined, job.Kind)
	assert.Equal(t, "text", job.Params["paper"])

	assert.Eventually(t, func() bool { return pendingCount(t, rdb) == 0 }, time.Second, 10*time.Millisecond)
}

func TestConsumer_FailedJobMovesToDLQ(t *testing.T) {
	rdb := newRedis(t)
	c := startConsumer(t, rdb, 1, func(context.Context, *Message) error {
		return errors.New("run failed")
	})

	_, err := NewProducer(rdb, 100).PublishWorkflowJob(context.Background(), &WorkflowJobMessage{RunID: "run-2", Kind: model.RunKindSteps})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := c.DLQLength(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return pendingCount(t, rdb) == 0 }, time.Second, 10*time.Millisecond)
}

func TestConsumer_UnhandledTypeIsAcked(t *testing.T) {
	rdb := newRedis(t)
	startConsumer(t, rdb, 3, func(context.Context, *Message) error { return nil })

	msg, err := NewMessage("m-1", "unknown_type", "", map[string]string{"a": "b"})
	require.NoError(t, err)
	_, err = NewProducer(rdb, 0).Publish(context.Background(), StreamWorkflowJobs, msg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(context.Background(), string(StreamWorkflowJobs)).Result()
		return err == nil && n == 1 && pendingCount(t, rdb) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumer_StartTwice(t *testing.T) {
	rdb := newRedis(t)
	c := startConsumer(t, rdb, 3, func(context.Context, *Message) error { return nil })
	assert.Error(t, c.Start(context.Background()))
}

func TestBackoff(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, b.CalculateBackoff(0))
	assert.Equal(t, 4*time.Second, b.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(10))

	got := BackoffFromConfig(config.BackoffConfig{Initial: 2 * time.Second})
	assert.Equal(t, 2*time.Second, got.Initial)
	assert.Equal(t, time.Minute, got.Max)
	assert.Equal(t, 2.0, got.Multiplier)

	cc := WorkflowConsumerConfig(config.RedisStreamConfig{RetryLimit: 5}, "w")
	assert.Equal(t, StreamWorkflowJobs, cc.Stream)
	assert.Equal(t, 5, cc.RetryLimit)
	assert.Equal(t, "dlq:stream:workflow:jobs", cc.Stream.DLQStream())
}

func TestMessageMetadata(t *testing.T) {
	var m Message
	assert.Empty(t, m.GetMetadata("k"))
	m.SetMetadata("k", "v")
	assert.Equal(t, "v", m.GetMetadata("k"))
}
