package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestKind classifies a queued work item.
type RequestKind string

const (
	RequestText  RequestKind = "text"
	RequestImage RequestKind = "image"
)

// PendingRequest is one item of queued work. Payload is the user text
// for text requests and the rewritten image prompt for image requests.
type PendingRequest struct {
	ID             uuid.UUID
	ConversationID string
	Payload        string
	Kind           RequestKind
	EnqueuedAt     time.Time
}

// Queue is the unbounded FIFO feeding the single worker. Besides
// put/get it supports inspection: Busy reports whether a conversation
// has anything queued or currently being processed, which is the guard
// used by clear and the reaction edit handlers.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []PendingRequest
	inFlight string
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends a request. Never blocks.
func (q *Queue) Put(req PendingRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	q.cond.Signal()
}

// Get blocks until a request is available or ctx is done. A dequeued
// request is considered in flight until Done is called.
func (q *Queue) Get(ctx context.Context) (PendingRequest, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && ctx.Err() == nil {
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return PendingRequest{}, false
	}

	req := q.items[0]
	q.items = q.items[1:]
	q.inFlight = req.ConversationID
	return req, true
}

// Done marks the in-flight request finished.
func (q *Queue) Done() {
	q.mu.Lock()
	q.inFlight = ""
	q.mu.Unlock()
}

// Busy reports whether any request for the conversation is queued or in
// flight. Linear scan; queues here are tiny.
func (q *Queue) Busy(conversationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == conversationID {
		return true
	}
	for _, req := range q.items {
		if req.ConversationID == conversationID {
			return true
		}
	}
	return false
}

// Len returns the number of queued (not in-flight) requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
