package dispatch

import "sync"

// StreamHandle 一次流式转发的消费端句柄
// HTTP 层从 Events 读取 SSE 负载转发给客户端；客户端断开时调用
// Abandon，转发协程会继续读完上游并完成落库
type StreamHandle struct {
	RequestID string // 本次转发的请求标识
	MessageID uint   // 占位助手消息 ID

	events    chan string
	abandoned chan struct{}
	done      chan struct{}

	mu          sync.Mutex
	err         error
	abandonOnce sync.Once
}

func newStreamHandle(requestID string, messageID uint) *StreamHandle {
	return &StreamHandle{
		RequestID: requestID,
		MessageID: messageID,
		events:    make(chan string, 64),
		abandoned: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Events 返回 SSE 负载通道，转发结束后关闭
func (h *StreamHandle) Events() <-chan string {
	return h.events
}

// Abandon 声明消费端不再读取事件
// 转发协程停止投递但继续读完上游，最终结果仍会落库
func (h *StreamHandle) Abandon() {
	h.abandonOnce.Do(func() { close(h.abandoned) })
}

// Done 返回结束信号通道，落库完成后关闭
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Err 返回流式阶段的错误，Done 关闭后可读
func (h *StreamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// send 投递事件，消费端已放弃时直接丢弃
func (h *StreamHandle) send(payload string) {
	select {
	case <-h.abandoned:
	case h.events <- payload:
	}
}

// fail 记录流式阶段的错误
func (h *StreamHandle) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// closeEvents 关闭事件通道，通知消费端流已结束
func (h *StreamHandle) closeEvents() {
	close(h.events)
}

// finish 通知消费端落库已完成
func (h *StreamHandle) finish() {
	close(h.done)
}
