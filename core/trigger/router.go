package trigger

import (
	"context"

	"StudioLink/logger"
	"StudioLink/queue"
)

// Router 按集合名把变更事件分发给注册的处理器。
type Router struct {
	handlers map[string]Handler
}

// NewRouter 创建空路由表
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register 注册某个集合的处理器，重复注册后者覆盖前者。
func (r *Router) Register(collection string, h Handler) {
	r.handlers[collection] = h
}

// Handle 分发一个事件。没有注册处理器的集合直接确认丢弃。
func (r *Router) Handle(ctx context.Context, ev queue.ChangeEvent) error {
	h, ok := r.handlers[ev.Collection]
	if !ok {
		logger.Debug("忽略未注册集合的变更事件",
			logger.String("collection", ev.Collection),
			logger.String("eventId", ev.EventID))
		return nil
	}
	return h(ctx, ev)
}
