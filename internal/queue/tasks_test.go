package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/config"
	"sop-assistant/models"

	"github.com/hibiken/asynq"
)

type fakeParser struct {
	draft *models.PendingSOP
	err   error
	path  string
}

func (f *fakeParser) ParseStored(_ context.Context, path, _ string) (*models.PendingSOP, error) {
	f.path = path
	return f.draft, f.err
}

func TestNewParseDocumentTask(t *testing.T) {
	task, err := NewParseDocumentTask("uploads/a.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("NewParseDocumentTask failed: %v", err)
	}
	if task.Type() != TaskParseDocument {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	var payload ParsePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.StoragePath != "uploads/a.pdf" || payload.MimeType != "application/pdf" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestProcessParse(t *testing.T) {
	parser := &fakeParser{draft: &models.PendingSOP{Sections: []models.PendingSOPSection{{Title: "t"}}}}
	p := NewTaskProcessor(parser)

	task, _ := NewParseDocumentTask("uploads/a.txt", "text/plain")
	if err := p.ProcessParse(context.Background(), task); err != nil {
		t.Fatalf("ProcessParse failed: %v", err)
	}
	if parser.path != "uploads/a.txt" {
		t.Fatalf("parser received %q", parser.path)
	}
}

func TestProcessParseSkipsRetryForBadInput(t *testing.T) {
	p := NewTaskProcessor(&fakeParser{err: apperr.ParseFailure("不支援的檔案類型：application/zip", nil)})
	task, _ := NewParseDocumentTask("uploads/a.zip", "application/zip")
	if err := p.ProcessParse(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	if err := p.ProcessParse(context.Background(), asynq.NewTask(TaskParseDocument, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for a bad payload, got %v", err)
	}
}

func TestProcessParseRetriesTransientErrors(t *testing.T) {
	p := NewTaskProcessor(&fakeParser{err: errors.New("storage timeout")})
	task, _ := NewParseDocumentTask("uploads/a.txt", "text/plain")
	err := p.ProcessParse(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transient errors should be retried, got %v", err)
	}
}

func TestStatusFromInfo(t *testing.T) {
	completed := StatusFromInfo(&asynq.TaskInfo{
		ID:     "t1",
		State:  asynq.TaskStateCompleted,
		Result: []byte(`{"sections":[{"title":"a","content":"b"}]}`),
	})
	if completed.State != "completed" || completed.Draft == nil || len(completed.Draft.Sections) != 1 {
		t.Fatalf("unexpected completed status %+v", completed)
	}
	if !completed.Draft.Sections[0].Selected {
		t.Fatalf("sections should default to selected")
	}

	archived := StatusFromInfo(&asynq.TaskInfo{ID: "t2", State: asynq.TaskStateArchived, LastErr: "boom"})
	if archived.State != "failed" || archived.Error != "boom" {
		t.Fatalf("unexpected archived status %+v", archived)
	}

	pending := StatusFromInfo(&asynq.TaskInfo{ID: "t3", State: asynq.TaskStatePending})
	if pending.State != "pending" || pending.Draft != nil {
		t.Fatalf("unexpected pending status %+v", pending)
	}
}

func TestRedisConnOpt(t *testing.T) {
	opt, err := RedisConnOpt(&config.Config{RedisURL: "redis://:secret@cache.internal:6380/2"})
	if err != nil {
		t.Fatalf("RedisConnOpt failed: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options %+v", opt)
	}
}
