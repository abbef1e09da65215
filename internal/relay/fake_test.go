package relay

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

var errScriptDone = errors.Wrap(exception.ErrTransport, "script exhausted")

type recvResult struct {
	msg model.Message
	err error
}

// scriptedSource replays results, then either fails with errScriptDone or
// blocks until the context ends.
type scriptedSource struct {
	mu      sync.Mutex
	results []recvResult
	served  int
	block   bool
}

func newSource(results ...recvResult) *scriptedSource {
	return &scriptedSource{results: results}
}

func msg(m model.Message) recvResult { return recvResult{msg: m} }
func recvErr(err error) recvResult { return recvResult{err: err} }

func (s *scriptedSource) Recv(ctx context.Context) (model.Message, error) {
	s.mu.Lock()
	if s.served < len(s.results) {
		r := s.results[s.served]
		s.served++
		s.mu.Unlock()
		return r.msg, r.err
	}
	block := s.block
	s.mu.Unlock()

	if !block {
		return nil, errScriptDone
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

type report struct {
	err  error
	kind string
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []report
}

func (r *recordingReporter) Report(err error, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{err: err, kind: kind})
}

func (r *recordingReporter) Flush(time.Duration) bool { return true }

func (r *recordingReporter) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.reports))
	for _, rep := range r.reports {
		kinds = append(kinds, rep.kind)
	}
	return kinds
}

type fakeSink struct {
	mu    sync.Mutex
	calls []model.Action
	errs  []error
}

func (s *fakeSink) Send(_ context.Context, action model.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, action)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *fakeSink) Calls() []model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Action(nil), s.calls...)
}

type journalCall struct {
	op  string
	sub model.Subscription
}

type fakeJournal struct {
	mu    sync.Mutex
	calls []journalCall
	err   error
}

func (j *fakeJournal) Add(_ context.Context, sub model.Subscription) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, journalCall{op: "add", sub: sub})
	return j.err
}

func (j *fakeJournal) Remove(_ context.Context, sub model.Subscription) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, journalCall{op: "remove", sub: sub})
	return j.err
}

func (j *fakeJournal) Calls() []journalCall {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journalCall(nil), j.calls...)
}

// pipeConn is a websocket.Conn fed frame by frame from the test.
type pipeConn struct {
	frames chan []byte

	mu       sync.Mutex
	written  []string
	writeErr error
	closed   bool
}

func newPipeConn() *pipeConn {
	return &pipeConn{frames: make(chan []byte, 64)}
}

func (c *pipeConn) Push(frame string) {
	c.frames <- []byte(frame)
}

func (c *pipeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case frame := <-c.frames:
		return websocket.MessageText, frame, nil
	}
}

func (c *pipeConn) Write(_ context.Context, _ websocket.MessageType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, string(payload))
	return nil
}

// FailWrites makes every later Write return err.
func (c *pipeConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *pipeConn) Close(websocket.CloseCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *pipeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func (c *pipeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type singleDialer struct {
	conn websocket.Conn
	err  error
}

func (d singleDialer) Dial(context.Context) (websocket.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}
