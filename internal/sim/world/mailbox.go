package world

import (
	"sync"
	"time"
)

// mailbox is an unbounded FIFO drained by exactly one goroutine. Posting
// never blocks, so workers may post to each other freely.
type mailbox struct {
	mu      sync.Mutex
	queue   []func()
	delayed int
	closed  bool

	wake chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// post enqueues task. It returns false once the mailbox is closed.
func (m *mailbox) post(task func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, task)
	m.mu.Unlock()
	m.signal()
	return true
}

// postAfter enqueues task after d. An accepted task is delivered even if the
// mailbox closes in the meantime; the worker stays up until it has run.
func (m *mailbox) postAfter(d time.Duration, task func()) bool {
	if d <= 0 {
		return m.post(task)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.delayed++
	m.mu.Unlock()

	time.AfterFunc(d, func() {
		m.mu.Lock()
		m.delayed--
		m.queue = append(m.queue, task)
		m.mu.Unlock()
		m.signal()
	})
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) take() (batch []func(), alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch = m.queue
	m.queue = nil
	done := m.closed && len(batch) == 0 && m.delayed == 0
	return batch, !done
}

// run drains the mailbox until it is closed and nothing is pending.
func (m *mailbox) run(ran func(n int)) {
	for {
		batch, alive := m.take()
		for _, task := range batch {
			task()
		}
		if ran != nil && len(batch) > 0 {
			ran(len(batch))
		}
		if !alive {
			return
		}
		if len(batch) == 0 {
			<-m.wake
		}
	}
}
