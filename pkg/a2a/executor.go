// Package a2a translates A2A requests into agent invocations and writes the
// answers back as A2A events.
package a2a

import (
	"context"
	"fmt"
	"iter"
	"strings"

	a2atype "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/go-logr/logr"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
)

// Invoker is the part of foundry.Adapter the translator needs.
type Invoker interface {
	InvokeBlocking(ctx context.Context, prompt string) (string, error)
	InvokeStreaming(ctx context.Context, prompt string) (iter.Seq2[string, error], error)
}

var _ Invoker = (*foundry.Adapter)(nil)

// Translator implements a2asrv.AgentExecutor on top of an Invoker.
//
// In blocking mode every request produces exactly one agent message holding
// the complete answer. In streaming mode the request becomes a task: each
// answer fragment is appended to a single artifact and the task completes with
// the full answer, or fails with the error text.
type Translator struct {
	invoker   Invoker
	streaming bool
	base      logr.Logger
	log       logr.Logger
}

var _ a2asrv.AgentExecutor = (*Translator)(nil)

// NewTranslator creates a Translator. streaming selects the event shape.
func NewTranslator(invoker Invoker, streaming bool, log logr.Logger) *Translator {
	return &Translator{
		invoker:   invoker,
		streaming: streaming,
		base:      log,
		log:       log.WithName("a2a-executor"),
	}
}

// Execute implements a2asrv.AgentExecutor.
func (t *Translator) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	// The invoker names its own logger; it only inherits the request values.
	ctx = logr.NewContext(ctx, t.base.WithValues("taskID", reqCtx.TaskID, "contextID", reqCtx.ContextID))
	log := t.log.WithValues("taskID", reqCtx.TaskID, "contextID", reqCtx.ContextID)

	prompt, err := UserInput(reqCtx.Message)
	if err != nil {
		log.Info("Rejecting request", "reason", err.Error())
		return err
	}

	if t.streaming {
		return t.executeStreaming(ctx, log, reqCtx, NewEventQueue(queue, reqCtx), prompt)
	}
	return t.executeBlocking(ctx, reqCtx, queue, prompt)
}

func (t *Translator) executeBlocking(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, prompt string) error {
	answer, err := t.invoker.InvokeBlocking(ctx, prompt)
	if err != nil {
		return err
	}
	msg := a2atype.NewMessage(a2atype.MessageRoleAgent, a2atype.TextPart{Text: answer})
	msg.ContextID = reqCtx.ContextID
	if err := queue.Write(ctx, msg); err != nil {
		return fmt.Errorf("failed to write agent message: %w", err)
	}
	return nil
}

func (t *Translator) executeStreaming(ctx context.Context, log logr.Logger, reqCtx *a2asrv.RequestContext, queue *EventQueue, prompt string) error {
	fragments, err := t.invoker.InvokeStreaming(ctx, prompt)
	if err != nil {
		return err
	}

	if reqCtx.StoredTask == nil {
		submitted := a2atype.NewStatusUpdateEvent(reqCtx, a2atype.TaskStateSubmitted, reqCtx.Message)
		if err := queue.Write(ctx, submitted); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}
	if err := queue.Write(ctx, a2atype.NewStatusUpdateEvent(reqCtx, a2atype.TaskStateWorking, nil)); err != nil {
		return fmt.Errorf("failed to write working event: %w", err)
	}

	var artifactID a2atype.ArtifactID
	for fragment, err := range fragments {
		if err != nil {
			log.Error(err, "Streaming invocation failed", "streamedLength", len(queue.Text()))
			return t.writeTerminal(ctx, reqCtx, queue, artifactID, failedStatus(reqCtx, err))
		}
		if fragment == "" {
			continue
		}

		var chunk *a2atype.TaskArtifactUpdateEvent
		if artifactID == "" {
			chunk = a2atype.NewArtifactEvent(reqCtx, a2atype.TextPart{Text: fragment})
			artifactID = chunk.Artifact.ID
		} else {
			chunk = a2atype.NewArtifactUpdateEvent(reqCtx, artifactID, a2atype.TextPart{Text: fragment})
			chunk.Append = true
		}
		if err := queue.Write(ctx, chunk); err != nil {
			return fmt.Errorf("failed to write artifact chunk: %w", err)
		}
	}

	completed := a2atype.NewStatusUpdateEvent(reqCtx, a2atype.TaskStateCompleted, nil)
	completed.Final = true
	return t.writeTerminal(ctx, reqCtx, queue, artifactID, completed)
}

// writeTerminal closes the artifact, if one was started, and writes the final
// status event.
func (t *Translator) writeTerminal(ctx context.Context, reqCtx *a2asrv.RequestContext, queue *EventQueue, artifactID a2atype.ArtifactID, status *a2atype.TaskStatusUpdateEvent) error {
	if artifactID != "" {
		last := a2atype.NewArtifactUpdateEvent(reqCtx, artifactID)
		last.Append = true
		last.LastChunk = true
		if err := queue.Write(ctx, last); err != nil {
			return fmt.Errorf("failed to write last artifact chunk: %w", err)
		}
	}
	if err := queue.Write(ctx, status); err != nil {
		return fmt.Errorf("failed to write %s status: %w", status.Status.State, err)
	}
	return nil
}

func failedStatus(reqCtx *a2asrv.RequestContext, cause error) *a2atype.TaskStatusUpdateEvent {
	msg := a2atype.NewMessageForTask(a2atype.MessageRoleAgent, reqCtx, a2atype.TextPart{Text: cause.Error()})
	ev := a2atype.NewStatusUpdateEvent(reqCtx, a2atype.TaskStateFailed, msg)
	ev.Final = true
	return ev
}

// Cancel implements a2asrv.AgentExecutor. Invocations cannot be interrupted
// once sent, so cancellation is always refused.
func (t *Translator) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	t.log.Info("Refusing cancel", "taskID", reqCtx.TaskID)
	return fmt.Errorf("%w: %w", a2atype.ErrUnsupportedOperation, foundry.ErrUnsupportedOperation)
}

// UserInput joins the text parts of msg with newlines. Non-text parts are
// ignored. A message without text wraps foundry.ErrInvalidInput.
func UserInput(msg *a2atype.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: request has no message", foundry.ErrInvalidInput)
	}
	var texts []string
	for _, part := range msg.Parts {
		if tp, ok := part.(a2atype.TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	prompt := strings.Join(texts, "\n")
	if prompt == "" {
		return "", fmt.Errorf("%w: message has no text", foundry.ErrInvalidInput)
	}
	return prompt, nil
}
