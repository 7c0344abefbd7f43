package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"relay-pipeline/internal/domain"
)

// TaskLauncher starts one task and returns it with the control plane's run
// identifier filled in, when one was returned.
type TaskLauncher interface {
	RunTask(ctx context.Context, task domain.DispatchedTask) (domain.DispatchedTask, error)
}

// LaunchLedger records which dispatch messages already produced a launch.
type LaunchLedger interface {
	// Claim reserves dedupID. When it is already reserved, claimed is false and
	// taskARN holds whatever was recorded for it.
	Claim(ctx context.Context, dedupID string, ref domain.StoredFileRef) (claimed bool, taskARN string, err error)
	Record(ctx context.Context, dedupID, taskARN string) error
	Release(ctx context.Context, dedupID string) error
}

// TaskTemplate is the fixed part of every launch.
type TaskTemplate struct {
	Cluster        string
	TaskDefinition string
	Container      string
	LaunchType     string
	Entrypoint     []string
}

type DispatchService struct {
	launcher TaskLauncher
	ledger   LaunchLedger
	template TaskTemplate
}

type DispatchInput struct {
	Body string
	// MessageID is the queue's id for the delivery. It keys the ledger when
	// the body carries no deduplication id.
	MessageID string
}

type DispatchOutput struct {
	Task      domain.DispatchedTask
	Duplicate bool
}

// NewDispatchService builds a DispatchService. ledger may be nil, in which
// case every message launches a task.
func NewDispatchService(launcher TaskLauncher, ledger LaunchLedger, template TaskTemplate) (*DispatchService, error) {
	if launcher == nil {
		return nil, errors.New("usecase: task launcher must not be nil")
	}
	if strings.TrimSpace(template.Cluster) == "" {
		return nil, errors.New("usecase: cluster must not be empty")
	}
	if strings.TrimSpace(template.TaskDefinition) == "" {
		return nil, errors.New("usecase: task definition must not be empty")
	}
	if strings.TrimSpace(template.Container) == "" {
		return nil, errors.New("usecase: container name must not be empty")
	}
	if len(template.Entrypoint) == 0 {
		return nil, errors.New("usecase: entrypoint must not be empty")
	}
	return &DispatchService{
		launcher: launcher,
		ledger:   ledger,
		template: template,
	}, nil
}

func (s *DispatchService) Dispatch(ctx context.Context, in DispatchInput) (DispatchOutput, error) {
	msg, err := ParseDispatchMessage(in.Body)
	if err != nil {
		return DispatchOutput{}, err
	}
	task := s.BuildTask(msg.StoredFileRef)

	if s.ledger == nil {
		launched, err := s.launcher.RunTask(ctx, task)
		if err != nil {
			return DispatchOutput{}, newError(ErrorControlPlane, "ecs_run_task_error", err)
		}
		return DispatchOutput{Task: launched}, nil
	}

	dedupID := msg.DeduplicationID
	if dedupID == "" {
		dedupID = in.MessageID
	}
	if dedupID == "" {
		return DispatchOutput{}, newError(ErrorMalformedMessage, "missing_deduplication_id", nil)
	}

	claimed, existingARN, err := s.ledger.Claim(ctx, dedupID, msg.StoredFileRef)
	if err != nil {
		return DispatchOutput{}, newError(ErrorLedger, "ledger_claim_error", err)
	}
	if !claimed {
		task.TaskARN = existingARN
		return DispatchOutput{Task: task, Duplicate: true}, nil
	}

	launched, err := s.launcher.RunTask(ctx, task)
	if err != nil {
		if relErr := s.ledger.Release(ctx, dedupID); relErr != nil {
			err = errors.Join(err, fmt.Errorf("release claim %q: %w", dedupID, relErr))
		}
		return DispatchOutput{}, newError(ErrorControlPlane, "ecs_run_task_error", err)
	}
	// No task came back (placement failures only), so nothing was launched.
	if launched.TaskARN == "" {
		if err := s.ledger.Release(ctx, dedupID); err != nil {
			return DispatchOutput{Task: launched}, newError(ErrorLedger, "ledger_release_error", err)
		}
		return DispatchOutput{Task: launched}, nil
	}
	if err := s.ledger.Record(ctx, dedupID, launched.TaskARN); err != nil {
		return DispatchOutput{Task: launched}, newError(ErrorLedger, "ledger_record_error", err)
	}
	return DispatchOutput{Task: launched}, nil
}

// BuildTask fills the template with the command for ref: the entrypoint
// followed by the bucket and key as positional arguments.
func (s *DispatchService) BuildTask(ref domain.StoredFileRef) domain.DispatchedTask {
	command := make([]string, 0, len(s.template.Entrypoint)+2)
	command = append(command, s.template.Entrypoint...)
	command = append(command, ref.Bucket, ref.Key)
	return domain.DispatchedTask{
		Cluster:        s.template.Cluster,
		TaskDefinition: s.template.TaskDefinition,
		Container:      s.template.Container,
		LaunchType:     s.template.LaunchType,
		Command:        command,
	}
}

// ParseDispatchMessage decodes a queue body into a DispatchMessage and checks
// that it names a stored file.
func ParseDispatchMessage(body string) (domain.DispatchMessage, error) {
	var msg domain.DispatchMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return domain.DispatchMessage{}, newError(ErrorMalformedMessage, "invalid_json", err)
	}
	if strings.TrimSpace(msg.Bucket) == "" {
		return domain.DispatchMessage{}, newError(ErrorMalformedMessage, "missing_bucket_name", nil)
	}
	if strings.TrimSpace(msg.Key) == "" {
		return domain.DispatchMessage{}, newError(ErrorMalformedMessage, "missing_file_name", nil)
	}
	return msg, nil
}
