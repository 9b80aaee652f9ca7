package cmd

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/jacinta/internal/service"
	"github.com/felixgeelhaar/jacinta/internal/task"
	"github.com/felixgeelhaar/jacinta/pkg/jacinta/client"
)

// taskBackend is what the task subcommands operate on: the local store or
// the API of a running server.
type taskBackend interface {
	List(ctx context.Context, status string) ([]task.Summary, error)
	Create(ctx context.Context, title, description string) (task.Summary, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	Cancel(ctx context.Context, id string) (string, error)
	Retry(ctx context.Context, id string) (*task.Task, error)
	Close()
}

// openBackend returns a remote backend when --server is set and a local one
// otherwise.
func openBackend(ctx context.Context) (taskBackend, error) {
	if serverURL != "" {
		if _, _, err := loadConfig(); err != nil {
			return nil, err
		}
		return &remoteBackend{client: client.New(serverURL)}, nil
	}

	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a, svc: service.New(a.store, a.logger)}, nil
}

type localBackend struct {
	app *app
	svc *service.TaskService
}

func (b *localBackend) List(ctx context.Context, status string) ([]task.Summary, error) {
	tasks, err := b.svc.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]task.Summary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Summary())
	}
	return out, nil
}

func (b *localBackend) Create(ctx context.Context, title, description string) (task.Summary, error) {
	t, err := b.svc.Create(ctx, service.CreateRequest{Title: title, Description: description})
	if err != nil {
		return task.Summary{}, err
	}
	return t.Summary(), nil
}

func (b *localBackend) Get(ctx context.Context, id string) (*task.Task, error) {
	return b.svc.Get(ctx, id)
}

func (b *localBackend) Cancel(ctx context.Context, id string) (string, error) {
	if err := b.svc.Cancel(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %s cancelled", id), nil
}

func (b *localBackend) Retry(ctx context.Context, id string) (*task.Task, error) {
	return b.svc.Retry(ctx, id)
}

func (b *localBackend) Close() { b.app.Close() }

type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) List(ctx context.Context, status string) ([]task.Summary, error) {
	return b.client.List(ctx, status)
}

func (b *remoteBackend) Create(ctx context.Context, title, description string) (task.Summary, error) {
	return b.client.Create(ctx, client.CreateRequest{Title: title, Description: description})
}

func (b *remoteBackend) Get(ctx context.Context, id string) (*task.Task, error) {
	return b.client.Get(ctx, id)
}

func (b *remoteBackend) Cancel(ctx context.Context, id string) (string, error) {
	return b.client.Cancel(ctx, id)
}

func (b *remoteBackend) Retry(ctx context.Context, id string) (*task.Task, error) {
	return b.client.Retry(ctx, id)
}

func (b *remoteBackend) Close() {}

// fetchAll loads every task in full, for the dashboard.
func fetchAll(ctx context.Context, b taskBackend) ([]*task.Task, error) {
	summaries, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	tasks := make([]*task.Task, 0, len(summaries))
	for _, s := range summaries {
		t, err := b.Get(ctx, s.ID)
		if err != nil {
			// cancelled between list and get
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
