package mail

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

type sender interface {
	SendVerification(ctx context.Context, to string, link string) error
}

// Worker drains the mail queue and delivers through the SMTP sender.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	sender sender
}

func NewWorker(redisOpt asynq.RedisClientOpt, concurrency int, s sender) *Worker {
	if concurrency <= 0 {
		concurrency = 2
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueMail: 1},
		LogLevel:    asynq.WarnLevel,
	})

	w := &Worker{srv: srv, mux: asynq.NewServeMux(), sender: s}
	w.mux.HandleFunc(TypeSendEmailVerification, w.handleSendEmailVerification)
	return w
}

func (w *Worker) handleSendEmailVerification(ctx context.Context, t *asynq.Task) error {
	var p verificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		slog.Error("verification mail payload invalid", "error", err)
		return asynq.SkipRetry
	}

	if err := w.sender.SendVerification(ctx, p.To, p.Link); err != nil {
		slog.Warn("verification mail delivery failed", "to", p.To, "error", err)
		return err
	}

	slog.Info("verification mail delivered", "to", p.To)
	return nil
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
