package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the queue uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

type session struct {
	ch    amqpChannel
	close func() error
}

type dialFunc func(ctx context.Context) (session, error)

// Queue is a RabbitMQ client for the durable email job queue. A dropped
// connection is redialled on the next Send or Consume.
type Queue struct {
	dial  dialFunc
	queue string

	mu   sync.Mutex // amqp channels are not safe for concurrent publishers
	sess session

	minBackoff, maxBackoff time.Duration
}

func amqpDialer(url, queue string) dialFunc {
	return func(ctx context.Context) (session, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return session{}, fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return session{}, fmt.Errorf("open channel: %w", err)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return session{}, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		return session{ch: ch, close: conn.Close}, nil
	}
}

// DialQueue connects with a few retries, declares the queue and returns a ready client.
func DialQueue(ctx context.Context, url, queue string) (*Queue, error) {
	q := newQueue(amqpDialer(url, queue), queue)
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.channel(ctx, 5); err != nil {
		return nil, err
	}
	return q, nil
}

func newQueue(dial dialFunc, queue string) *Queue {
	return &Queue{dial: dial, queue: queue, minBackoff: time.Second, maxBackoff: 30 * time.Second}
}

// channel returns the live channel, redialling with exponential backoff when
// it is gone. attempts <= 0 retries until ctx is done. q.mu must be held.
func (q *Queue) channel(ctx context.Context, attempts int) (amqpChannel, error) {
	if q.sess.ch != nil && !q.sess.ch.IsClosed() {
		return q.sess.ch, nil
	}
	q.drop()
	backoff := q.minBackoff
	for i := 1; ; i++ {
		s, err := q.dial(ctx)
		if err == nil {
			q.sess = s
			return s.ch, nil
		}
		if attempts > 0 && i >= attempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > q.maxBackoff {
			backoff = q.maxBackoff
		}
	}
}

func (q *Queue) drop() {
	if q.sess.close != nil {
		_ = q.sess.close()
	}
	q.sess = session{}
}

// Send enqueues the envelope as a persistent JSON job.
func (q *Queue) Send(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         env.Kind,
		Body:         body,
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, err := q.channel(ctx, 0)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	// the broker went away since the last publish
	q.drop()
	if ch, err = q.channel(ctx, 0); err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", q.queue, false, false, msg)
}

// Consume delivers jobs with manual acknowledgement, one at a time. The
// returned channel closes when the connection drops; call Consume again to resume.
func (q *Queue) Consume(ctx context.Context, consumer string) (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, err := q.channel(ctx, 0)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		q.drop()
		return nil, err
	}
	return ch.Consume(q.queue, consumer, false, false, false, false, nil)
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var err error
	if q.sess.close != nil {
		err = q.sess.close()
	}
	q.sess = session{}
	return err
}

// Acknowledger is the subset of amqp.Delivery the worker needs; tests fake it.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// HandleJob decodes one queued envelope and delivers it. A failed first
// attempt is requeued once; a failed redelivery is dropped and reported.
func HandleJob(ctx context.Context, sender Sender, body []byte, redelivered bool, ack Acknowledger) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		_ = ack.Nack(false, false)
		return fmt.Errorf("decode email job: %w", err)
	}
	if err := sender.Send(ctx, env); err != nil {
		_ = ack.Nack(false, !redelivered)
		return err
	}
	return ack.Ack(false)
}
