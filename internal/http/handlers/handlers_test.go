package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/generation"
	"github.com/feelkraft/comic-api/internal/payment"
	"github.com/feelkraft/comic-api/internal/providers/groq"
	"github.com/feelkraft/comic-api/internal/providers/nanobanana"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[user.ID]
	if !ok {
		clone := *user
		f.users[user.ID] = &clone
		existing = &clone
	}
	out := *existing
	return &out, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (f *fakeUserRepo) IncrementFreeGenerations(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.FreeGenerations++
	return nil
}

func (f *fakeUserRepo) SetPro(ctx context.Context, id string, pro bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.IsPro = pro
	return nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.Job{}}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *job
	clone.CreatedAt = time.Now()
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *job
	out.PageURLs = append([]string(nil), job.PageURLs...)
	return &out, nil
}

func (f *fakeJobRepo) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobRepo) FinalizeIf(ctx context.Context, jobID string, expected, next domain.JobStatus, pageURLs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Status != expected {
		return false, nil
	}
	job.Status = next
	job.PageURLs = append([]string(nil), pageURLs...)
	return true, nil
}

func (f *fakeJobRepo) AttachPayment(ctx context.Context, jobID, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.PaymentID = &paymentID
	return nil
}

func (f *fakeJobRepo) ListSourceImagesOlderThan(ctx context.Context, cutoff time.Time) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (f *fakeJobRepo) ClearSourceImages(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.SourceImageURLs = nil
	return nil
}

type fakeLogRepo struct {
	mu   sync.Mutex
	logs map[string]*domain.TaskLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: map[string]*domain.TaskLog{}}
}

func (f *fakeLogRepo) Create(ctx context.Context, log *domain.TaskLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *log
	f.logs[log.TaskID] = &clone
	return nil
}

func (f *fakeLogRepo) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *log
	return &out, nil
}

func (f *fakeLogRepo) ListByJobID(ctx context.Context, jobID string) ([]domain.TaskLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TaskLog
	for _, log := range f.logs {
		if log.JobID == jobID {
			out = append(out, *log)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNum < out[j].PageNum })
	return out, nil
}

func (f *fakeLogRepo) MarkTerminalIf(ctx context.Context, taskID string, status domain.TaskStatus, resultURL, errorDetail string, costTimeMS *int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[taskID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if log.Status != domain.TaskStatusWaiting {
		return false, nil
	}
	log.Status = status
	log.ResultURL = resultURL
	log.ErrorDetail = errorDetail
	log.CostTimeMS = costTimeMS
	return true, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*domain.Payment{}}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *p
	f.payments[p.PaymentID] = &clone
	return nil
}

func (f *fakePaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

// fakeTaskClient accepts every submission and reports instant success.
type fakeTaskClient struct {
	mu        sync.Mutex
	submitted []nanobanana.TaskRequest
	seq       int
}

func (f *fakeTaskClient) CreateTask(ctx context.Context, req nanobanana.TaskRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.submitted = append(f.submitted, req)
	return fmt.Sprintf("task-%d", f.seq), nil
}

func (f *fakeTaskClient) PollUntilTerminal(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*nanobanana.TaskStatus, error) {
	return &nanobanana.TaskStatus{
		TaskID:     taskID,
		State:      nanobanana.StateSuccess,
		ResultURLs: []string{"https://cdn.example.com/" + taskID + ".png"},
	}, nil
}

type testEnv struct {
	app      *App
	users    *fakeUserRepo
	jobs     *fakeJobRepo
	logs     *fakeLogRepo
	payments *fakePaymentRepo
	tasks    *fakeTaskClient
	svc      *generation.Service
	tokens   *payment.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := newFakeUserRepo()
	jobs := newFakeJobRepo()
	logs := newFakeLogRepo()
	payments := newFakePaymentRepo()
	tasks := &fakeTaskClient{}

	svc, err := generation.NewService(generation.Options{
		Jobs:         jobs,
		Logs:         logs,
		Tasks:        tasks,
		PollAttempts: 1,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	tokens, err := payment.NewTokenIssuer("payment-test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}

	logger := zerolog.Nop()
	app := &App{
		Logger:    &logger,
		Users:     users,
		Jobs:      jobs,
		Logs:      logs,
		Payments:  payments,
		Generator: svc,
		Refiner:   groq.NewStaticRefiner(),
		Tokens:    tokens,
	}
	return &testEnv{
		app:      app,
		users:    users,
		jobs:     jobs,
		logs:     logs,
		payments: payments,
		tasks:    tasks,
		svc:      svc,
		tokens:   tokens,
	}
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d", want, got)
	}
}
