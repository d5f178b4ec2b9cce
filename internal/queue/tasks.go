// Package queue runs document parsing in the background on asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/config"
	"sop-assistant/internal/logger"
	"sop-assistant/models"

	"github.com/hibiken/asynq"
)

const (
	TaskParseDocument = "sop:parse"

	parseQueue     = "critical"
	parseRetention = 24 * time.Hour
)

// ErrTaskNotFound is returned for unknown or expired task ids.
var ErrTaskNotFound = errors.New("parse task not found")

type ParsePayload struct {
	StoragePath string `json:"storagePath"`
	MimeType    string `json:"mimeType"`
}

func NewParseDocumentTask(storagePath, mimeType string) (*asynq.Task, error) {
	payload, err := json.Marshal(ParsePayload{StoragePath: storagePath, MimeType: mimeType})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskParseDocument,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(parseQueue),
		asynq.Retention(parseRetention),
	), nil
}

// RedisConnOpt derives asynq connection options from the shared Redis
// settings.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opts, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// Client enqueues parse jobs and reports their status.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

// EnqueueParse schedules parsing of a staged document and returns the task id.
func (c *Client) EnqueueParse(ctx context.Context, storagePath, mimeType string) (string, error) {
	task, err := NewParseDocumentTask(storagePath, mimeType)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue parse task: %w", err)
	}
	logger.Info("Parse task enqueued", "task_id", info.ID, "storage_path", storagePath)
	return info.ID, nil
}

// Status looks up a parse task. Completed tasks carry the draft.
func (c *Client) Status(_ context.Context, taskID string) (*models.ParseTaskStatus, error) {
	info, err := c.inspector.GetTaskInfo(parseQueue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("inspect task %s: %w", taskID, err)
	}
	return StatusFromInfo(info), nil
}

// StatusFromInfo maps asynq task state onto the client-facing status.
func StatusFromInfo(info *asynq.TaskInfo) *models.ParseTaskStatus {
	status := &models.ParseTaskStatus{TaskID: info.ID, State: info.State.String()}
	switch info.State {
	case asynq.TaskStateCompleted:
		var draft models.PendingSOP
		if err := json.Unmarshal(info.Result, &draft); err != nil {
			status.State = "failed"
			status.Error = "AI 回傳的格式無法解析。"
			return status
		}
		if draft.Sections == nil {
			draft.Sections = []models.PendingSOPSection{}
		}
		status.Draft = &draft
	case asynq.TaskStateArchived, asynq.TaskStateRetry:
		status.Error = info.LastErr
		if info.State == asynq.TaskStateArchived {
			status.State = "failed"
		}
	}
	return status
}

func (c *Client) Close() error {
	if err := c.inspector.Close(); err != nil {
		return err
	}
	return c.client.Close()
}

// DocumentParser parses a staged document. *services.SOPParser satisfies it.
type DocumentParser interface {
	ParseStored(ctx context.Context, path, mimeType string) (*models.PendingSOP, error)
}

type TaskProcessor struct {
	parser DocumentParser
}

func NewTaskProcessor(parser DocumentParser) *TaskProcessor {
	return &TaskProcessor{parser: parser}
}

// Register installs the handlers on mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskParseDocument, p.ProcessParse)
}

func (p *TaskProcessor) ProcessParse(ctx context.Context, t *asynq.Task) error {
	var payload ParsePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing parse task", "storage_path", payload.StoragePath, "mime_type", payload.MimeType)

	draft, err := p.parser.ParseStored(ctx, payload.StoragePath, payload.MimeType)
	if err != nil {
		if errors.Is(err, apperr.ErrParseFailure) || errors.Is(err, apperr.ErrValidationFailure) {
			// The same input will fail the same way.
			return fmt.Errorf("%s: %w", apperr.PublicMessage(err), asynq.SkipRetry)
		}
		return err
	}

	result, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if w := t.ResultWriter(); w != nil {
		if _, err := w.Write(result); err != nil {
			return fmt.Errorf("write task result: %w", err)
		}
	}

	logger.Info("Parse task completed", "storage_path", payload.StoragePath, "sections", len(draft.Sections))
	return nil
}
