package a2a

import (
	"context"
	"strings"

	a2atype "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

// EventQueue wraps an eventqueue.Queue and remembers the text streamed into
// artifacts for the current task. When the final status event arrives without
// a message, the accumulated text is attached as the agent's reply, so clients
// that only read the final status still see the complete answer.
type EventQueue struct {
	eventqueue.Queue
	reqCtx *a2asrv.RequestContext

	text strings.Builder
}

// NewEventQueue creates an EventQueue around inner for one request.
func NewEventQueue(inner eventqueue.Queue, reqCtx *a2asrv.RequestContext) *EventQueue {
	return &EventQueue{Queue: inner, reqCtx: reqCtx}
}

func (q *EventQueue) Write(ctx context.Context, event a2atype.Event) error {
	switch ev := event.(type) {
	case *a2atype.TaskArtifactUpdateEvent:
		if !ev.Append {
			q.text.Reset()
		}
		for _, part := range ev.Artifact.Parts {
			if tp, ok := part.(a2atype.TextPart); ok {
				q.text.WriteString(tp.Text)
			}
		}
	case *a2atype.TaskStatusUpdateEvent:
		if ev.Final && ev.Status.Message == nil && q.text.Len() > 0 {
			ev.Status.Message = a2atype.NewMessageForTask(a2atype.MessageRoleAgent, q.reqCtx, a2atype.TextPart{Text: q.text.String()})
		}
	}
	return q.Queue.Write(ctx, event)
}

// Text returns the text accumulated so far.
func (q *EventQueue) Text() string {
	return q.text.String()
}
