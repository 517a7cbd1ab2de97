package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueueMail                 = "mail"
	TypeSendEmailVerification = "email:verification"
)

type verificationPayload struct {
	To   string `json:"to"`
	Link string `json:"link"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueMailer hands verification mail to the asynq worker. Only a failure
// to enqueue reaches the caller; delivery retries belong to the worker.
type QueueMailer struct {
	client   enqueuer
	maxRetry int
}

func NewQueueMailer(client *asynq.Client, maxRetry int) *QueueMailer {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &QueueMailer{client: client, maxRetry: maxRetry}
}

func (q *QueueMailer) SendVerification(ctx context.Context, to string, link string) error {
	payload, err := json.Marshal(verificationPayload{To: to, Link: link})
	if err != nil {
		return fmt.Errorf("encode verification task: %w", err)
	}

	task := asynq.NewTask(TypeSendEmailVerification, payload)
	if _, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueMail),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(30*time.Second),
	); err != nil {
		return fmt.Errorf("enqueue verification mail: %w", err)
	}
	return nil
}
