// Package queueaccess serves the read-only queue views either from a running
// daemon over IPC or straight from the queue database.
package queueaccess

import (
	"context"
	"fmt"
	"strings"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queue"
)

// Access provides queue views regardless of IPC or direct store backing.
type Access interface {
	List(ctx context.Context, req api.ListRequest) ([]api.Job, error)
	// Describe returns nil without error when the job does not exist.
	Describe(ctx context.Context, id int64) (*api.JobResponse, error)
	Batches(ctx context.Context) ([]api.Batch, error)
	Health(ctx context.Context) (api.DatabaseHealth, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) List(_ context.Context, req api.ListRequest) ([]api.Job, error) {
	resp, err := a.client.List(req)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*api.JobResponse, error) {
	resp, err := a.client.Describe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

func (a *ipcAccess) Batches(_ context.Context) ([]api.Batch, error) {
	resp, err := a.client.Batches()
	if err != nil {
		return nil, err
	}
	return resp.Batches, nil
}

func (a *ipcAccess) Health(_ context.Context) (api.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return api.DatabaseHealth{}, err
	}
	return *resp, nil
}

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) List(ctx context.Context, req api.ListRequest) ([]api.Job, error) {
	filter, err := req.Filter()
	if err != nil {
		return nil, err
	}
	jobs, err := a.store.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.JobResponse, error) {
	job, err := a.store.Get(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	attempts, err := a.store.Attempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return &api.JobResponse{Job: api.FromJob(job), Attempts: api.FromAttempts(attempts)}, nil
}

func (a *storeAccess) Batches(ctx context.Context) ([]api.Batch, error) {
	batches, err := a.store.Batches(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromBatches(batches), nil
}

func (a *storeAccess) Health(ctx context.Context) (api.DatabaseHealth, error) {
	health, err := a.store.CheckHealth(ctx)
	if err != nil {
		return api.DatabaseHealth{}, err
	}
	return api.FromDatabaseHealth(health), nil
}
