package backend

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeClient is an in-memory Client used by tests.
type FakeClient struct {
	mu          sync.Mutex
	ConnectErr  error
	NextQueryID uint64

	// ExecuteErr, when set, is returned by every Execute call whose
	// query text equals a registered pattern.
	ExecuteErr map[string]error

	// CompleteStarted and CompleteResume, when both set, let a test
	// hold a Complete call open: Complete signals CompleteStarted the
	// instant it is entered, then blocks until CompleteResume is
	// closed or sent to.
	CompleteStarted chan struct{}
	CompleteResume  chan struct{}
}

// NewFakeClient builds a ready-to-use fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{ExecuteErr: map[string]error{}}
}

// Connect implements Client.
func (f *FakeClient) Connect(_ context.Context, _ string, _ int, _, _ string) (Conn, error) {
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	return &fakeConn{client: f}, nil
}

type fakeConn struct {
	client *FakeClient
	mu     sync.Mutex
	qid    QueryID
}

func (c *fakeConn) Prepare(_ context.Context, text string) (Prepared, error) {
	return text, nil
}

func (c *fakeConn) Execute(_ context.Context, text string, _ Prepared) (QueryID, error) {
	c.client.mu.Lock()
	if err, ok := c.client.ExecuteErr[text]; ok {
		c.client.mu.Unlock()
		return QueryID{}, err
	}
	id := atomic.AddUint64(&c.client.NextQueryID, 1)
	c.client.mu.Unlock()

	qid := QueryID{CoordinatorID: 0, QueryID: id}
	c.mu.Lock()
	c.qid = qid
	c.mu.Unlock()
	return qid, nil
}

func (c *fakeConn) Complete(_ context.Context, _ QueryID) error {
	if c.client.CompleteStarted != nil {
		c.client.CompleteStarted <- struct{}{}
	}
	if c.client.CompleteResume != nil {
		<-c.client.CompleteResume
	}
	return nil
}

func (c *fakeConn) Disconnect(_ context.Context) error {
	return nil
}
