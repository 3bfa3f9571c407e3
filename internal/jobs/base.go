package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/config"
	"error-english/manager-go/internal/db"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/publish"
	"error-english/manager-go/internal/queue"
	"error-english/manager-go/internal/render"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// MessageQueue is the part of the RabbitMQ client the jobs use.
type MessageQueue interface {
	Pop(queueName string) (*queue.Message, error)
	Publish(queueName string, payload []byte) error
}

// Ledger records publications.
type Ledger interface {
	InsertPublication(ctx context.Context, p db.Publication) (int64, error)
	GetPublicationByWord(ctx context.Context, word string) (db.Publication, error)
}

type VideoRenderer interface {
	Render(ctx context.Context, entry entries.ErrorEntry, narration audio.Narration, tl timeline.Timeline) (render.Result, error)
}

type EntryGenerator interface {
	Generate(ctx context.Context, queuePath, historyPath string) ([]entries.ErrorEntry, error)
}

type TokenRefresher interface {
	RefreshToken(ctx context.Context) (string, error)
}

// Services are the collaborators built from config. Unconfigured ones stay nil
// and the jobs that need them fail with a clear message.
type Services struct {
	Layout    timeline.Layout
	Synth     audio.Synthesizer
	Probe     audio.Prober
	Renderer  VideoRenderer
	YouTube   publish.VideoUploader
	Threads   publish.TextPoster
	Instagram publish.ReelPoster
	Refresher TokenRefresher
	Generator EntryGenerator
}

type JobContext struct {
	Config   config.Config
	Store    Ledger
	Queue    MessageQueue
	Services Services

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

func (jctx JobContext) stdin() io.Reader {
	if jctx.Stdin == nil {
		return os.Stdin
	}
	return jctx.Stdin
}

func (jctx JobContext) stdout() io.Writer {
	if jctx.Stdout == nil {
		return os.Stdout
	}
	return jctx.Stdout
}

type JobOptions struct {
	Word          string
	Path          string
	Test          bool
	Queue         bool
	QueueOnce     bool
	Sleep         int
	Info          bool
	JSON          bool
	SkipThreads   bool
	SkipInstagram bool
	Threshold     int
}

type BaseJob struct {
	QueueInput      string
	QueueOutput     string
	IgnoreHostCheck bool
}

// QueuePayload asks a worker to produce the video for TargetWord.
type QueuePayload struct {
	TargetWord string `json:"target_word"`
	Hostname   string `json:"hostname"`
}

type QueueHandler func(ctx context.Context, word string) error

// RunQueue handles one message at a time until ctx is cancelled (or the queue
// is empty with QueueOnce). Malformed payloads are acked and dropped; handler
// failures are nacked for redelivery.
func (b BaseJob) RunQueue(ctx context.Context, jctx JobContext, opts JobOptions, handler QueueHandler) error {
	if jctx.Queue == nil {
		return fmt.Errorf("queue client is not configured")
	}

	sleep := opts.Sleep
	if sleep <= 0 {
		sleep = 30
	}
	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(sleep) * time.Second):
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := jctx.Queue.Pop(b.QueueInput)
		if err != nil {
			return err
		}
		if msg == nil {
			if opts.QueueOnce {
				return nil
			}
			utils.Debug("queue empty", "queue", b.QueueInput, "sleep_s", sleep)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		var payload QueuePayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			utils.Warn("queue payload json decode failed", "queue", b.QueueInput, "err", err)
			_ = msg.Ack()
			continue
		}
		payload.TargetWord = strings.TrimSpace(payload.TargetWord)
		if payload.TargetWord == "" {
			utils.Warn("queue payload invalid (missing target_word)", "queue", b.QueueInput)
			_ = msg.Ack()
			continue
		}

		if !b.IgnoreHostCheck && payload.Hostname != "" && payload.Hostname != jctx.Config.Hostname {
			utils.Warn("queue host mismatch", "queue", b.QueueInput, "message_host", payload.Hostname, "local_host", jctx.Config.Hostname)
			_ = msg.Nack(true)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if err := handler(ctx, payload.TargetWord); err != nil {
			utils.Error("queue handler error", "queue", b.QueueInput, "word", payload.TargetWord, "err", err)
			_ = msg.Nack(true)
			if opts.QueueOnce {
				return err
			}
			continue
		}
		_ = msg.Ack()
	}
}

// publishEvent sends v to the output queue when a queue is configured.
func (b BaseJob) publishEvent(jctx JobContext, v any) {
	if jctx.Queue == nil || b.QueueOutput == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		utils.Warn("event marshal failed", "queue", b.QueueOutput, "err", err)
		return
	}
	if err := jctx.Queue.Publish(b.QueueOutput, payload); err != nil {
		utils.Warn("event publish failed", "queue", b.QueueOutput, "err", err)
	}
}
