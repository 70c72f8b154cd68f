package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/store"
)

// Run shows the console until the user quits or ctx is done. Store and
// notification changes are forwarded to the running program.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(newModel(ctx, deps), tea.WithAltScreen())

	r := newRelay()
	done := make(chan struct{})
	defer close(done)
	go r.forward(done, p.Send)

	unsubStore := deps.Store.Subscribe(func(string, store.Entry) { r.storeChanged() })
	defer unsubStore()

	unsubSink := deps.Sink.Subscribe(func(*domain.Notification) { r.noticeChanged() })
	defer unsubSink()

	defer deps.Refresher.Close()

	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}

// relay hands change signals to the event loop without ever blocking the
// writer. Signals coalesce: the model re-reads the store and the sink on
// every message, so one pending signal per kind is enough.
type relay struct {
	store  chan struct{}
	notice chan struct{}
}

func newRelay() *relay {
	return &relay{
		store:  make(chan struct{}, 1),
		notice: make(chan struct{}, 1),
	}
}

func (r *relay) storeChanged() {
	select {
	case r.store <- struct{}{}:
	default:
	}
}

func (r *relay) noticeChanged() {
	select {
	case r.notice <- struct{}{}:
	default:
	}
}

// forward delivers pending signals through send until done is closed.
func (r *relay) forward(done <-chan struct{}, send func(tea.Msg)) {
	for {
		select {
		case <-done:
			return
		case <-r.store:
			send(storeChangedMsg{})
		case <-r.notice:
			send(noticeMsg{})
		}
	}
}
