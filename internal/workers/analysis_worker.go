package workers

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/services"
	"github.com/yoockh/convopilot/internal/utils"
)

const (
	DefaultAnalysisStream = "messages:analysis"
	DefaultAnalysisGroup  = "analysis-workers"
)

// StreamQueue appends analysis jobs to a Redis stream.
type StreamQueue struct {
	Redis  *redis.Client
	Stream string
	MaxLen int64 // approximate cap; 0 keeps every entry
}

func (q *StreamQueue) Enqueue(ctx context.Context, userID, messageID string) error {
	stream := q.Stream
	if stream == "" {
		stream = DefaultAnalysisStream
	}
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.MaxLen,
		Approx: q.MaxLen > 0,
		Values: map[string]any{
			"user_id":     userID,
			"message_id":  messageID,
			"enqueued_at": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// AnalysisWorkerPool consumes the analysis stream through a consumer group
// and back-fills each message's analysis. A message that was analyzed in
// the meantime is skipped.
type AnalysisWorkerPool struct {
	Redis      *redis.Client
	Messages   services.MessageService
	NumWorkers int

	Logger logrus.FieldLogger

	Stream         string
	Group          string
	ConsumerPrefix string
	JobTimeout     time.Duration

	wg sync.WaitGroup
}

func (p *AnalysisWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Messages == nil {
		return errors.New("AnalysisWorkerPool missing dependency: Redis/Messages must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultAnalysisStream
	}
	if p.Group == "" {
		p.Group = DefaultAnalysisGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = 30 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	return nil
}

// Wait blocks until every consumer has returned after ctx is cancelled.
func (p *AnalysisWorkerPool) Wait() { p.wg.Wait() }

func (p *AnalysisWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *AnalysisWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	userID := getStr("user_id")
	messageID := getStr("message_id")
	if userID == "" || messageID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"message_id": messageID,
	})

	jobCtx, cancel := context.WithTimeout(ctx, p.JobTimeout)
	defer cancel()

	start := time.Now()
	_, err := p.Messages.Analyze(jobCtx, userID, messageID)
	switch {
	case err == nil:
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("message analyzed")
	case utils.IsCode(err, utils.CodeConflict), utils.IsCode(err, utils.CodeNotFound):
		log.WithError(err).Debug("analysis skipped")
	default:
		log.WithError(err).Error("analysis failed")
	}
}
