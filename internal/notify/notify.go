// Package notify доставляет уведомления командам через Slack, Discord и Telegram.
package notify

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/maine/hn_keyword_bot/internal/news"
)

// Message - готовое к отправке уведомление.
type Message struct {
	Text string
}

// Dispatcher доставляет одно уведомление по адресу.
type Dispatcher interface {
	Dispatch(ctx context.Context, dest news.Destination, msg Message) error
}

// DispatcherFunc позволяет использовать функцию как Dispatcher.
type DispatcherFunc func(ctx context.Context, dest news.Destination, msg Message) error

// Dispatch реализует Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, dest news.Destination, msg Message) error {
	return f(ctx, dest, msg)
}

// ErrUnknownKind - для вида адреса не зарегистрирован отправитель.
var ErrUnknownKind = errors.New("unknown destination kind")

// Router выбирает отправителя по Destination.Kind.
type Router struct {
	routes map[string]Dispatcher
}

// NewRouter создаёт пустой маршрутизатор.
func NewRouter() *Router {
	return &Router{routes: map[string]Dispatcher{}}
}

// Handle регистрирует отправителя для вида адреса. nil снимает регистрацию.
func (r *Router) Handle(kind string, d Dispatcher) *Router {
	if d == nil {
		delete(r.routes, kind)
		return r
	}
	r.routes[kind] = d
	return r
}

// Dispatch реализует Dispatcher.
func (r *Router) Dispatch(ctx context.Context, dest news.Destination, msg Message) error {
	d, ok := r.routes[dest.Kind]
	if !ok {
		return errors.Wrapf(ErrUnknownKind, "%q", dest.Kind)
	}
	return d.Dispatch(ctx, dest, msg)
}
