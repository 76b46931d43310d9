package control

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-peershare/pkg/protocol"
)

// pendingRequest 等待响应的请求
type pendingRequest struct {
	id   uuid.UUID
	kind protocol.Kind
	resp chan string
}

// pendingTable 待响应请求表
//
// 线路格式不携带请求 ID，入站响应按先进先出交给最早的待响应请求。
// 客户端同一时刻只发出一个请求，表中最多一项。
// 请求超时后才到达的响应无法与下一个请求区分，会被当作下一个请求的响应。
type pendingTable struct {
	mu    sync.Mutex
	order []*pendingRequest
}

func (t *pendingTable) add(kind protocol.Kind) *pendingRequest {
	p := &pendingRequest{
		id:   uuid.New(),
		kind: kind,
		resp: make(chan string, 1),
	}

	t.mu.Lock()
	t.order = append(t.order, p)
	t.mu.Unlock()
	return p
}

func (t *pendingTable) remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.order {
		if p.id == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// deliver 把响应交给最早的待响应请求，没有待响应请求时返回 nil
func (t *pendingTable) deliver(payload string) *pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) == 0 {
		return nil
	}
	p := t.order[0]
	t.order = t.order[1:]
	p.resp <- payload
	return p
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
