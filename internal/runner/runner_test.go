package runner

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/executor"
	"github.com/felixgeelhaar/jacinta/internal/hooks"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/planner"
	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/search"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// fakePlanner returns a fixed plan and counts calls.
type fakePlanner struct {
	mu    sync.Mutex
	jobs  []task.Job
	err   error
	calls int
}

func (p *fakePlanner) Decompose(ctx context.Context, description string) ([]task.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]task.Job(nil), p.jobs...), nil
}

// fakeExecutor returns "done: <description>" unless the description is in fail.
type fakeExecutor struct {
	mu       sync.Mutex
	fail     map[string]error
	executed []string
	before   func(job task.Job)
}

func (e *fakeExecutor) Execute(ctx context.Context, job task.Job) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.before != nil {
		e.before(job)
	}
	e.executed = append(e.executed, job.Description)
	if err, ok := e.fail[job.Description]; ok {
		return "", err
	}
	return "done: " + job.Description, nil
}

type stubClient struct {
	content string
}

func (s *stubClient) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	return &provider.GenerateResponse{Content: s.content}, nil
}

func (s *stubClient) Health(ctx context.Context) error { return nil }
func (s *stubClient) Name() string                     { return "stub" }
func (s *stubClient) Close() error                     { return nil }

type stubSearcher struct {
	results []search.Result
}

func (s *stubSearcher) Search(ctx context.Context, query string, n int) ([]search.Result, error) {
	if len(s.results) > n {
		return s.results[:n], nil
	}
	return s.results, nil
}

func jobs(specs ...string) []task.Job {
	out := make([]task.Job, 0, len(specs)/2)
	for i := 0; i+1 < len(specs); i += 2 {
		out = append(out, task.NewJob(task.JobType(specs[i]), specs[i+1]))
	}
	return out
}

func createTask(t *testing.T, st store.Store, title string, createdAt time.Time) *task.Task {
	t.Helper()
	tk, err := task.New(title, "do "+title)
	require.NoError(t, err)
	tk.CreatedAt = createdAt
	require.NoError(t, st.Create(context.Background(), tk))
	return tk
}

func mustGet(t *testing.T, st store.Store, id string) *task.Task {
	t.Helper()
	tk, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	return tk
}

func TestPassCompletesTask(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "greet", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "find greetings", "code", "write hello.py")}
	ex := &fakeExecutor{}

	r := New(st, pl, ex, Config{Owner: "test"})
	report, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeCompleted, report.Tasks[0].Outcome)
	assert.True(t, report.Tasks[0].Planned)
	assert.Equal(t, 2, report.Tasks[0].JobsRun)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "test", got.ClaimedBy)
	for _, j := range got.Jobs {
		assert.True(t, j.Completed)
		assert.Equal(t, "done: "+j.Description, j.Result)
		assert.NotNil(t, j.CompletedAt)
	}
}

func TestStatusAfterPassIsNeverPending(t *testing.T) {
	tests := []struct {
		name string
		pl   *fakePlanner
		fail map[string]error
		want task.Status
	}{
		{"completes", &fakePlanner{jobs: jobs("research", "a")}, nil, task.StatusCompleted},
		{"job fails", &fakePlanner{jobs: jobs("research", "a")}, map[string]error{"a": stderrors.New("x")}, task.StatusCurrent},
		{"planner fails", &fakePlanner{err: errors.NewPlanValidationError("empty plan")}, nil, task.StatusCurrent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			tk := createTask(t, st, "t", time.Now())

			_, err := New(st, tt.pl, &fakeExecutor{fail: tt.fail}, Config{}).RunPendingPass(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mustGet(t, st, tk.ID).Status)
		})
	}
}

func TestPlannerCalledAtMostOnceAcrossPasses(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "a", "code", "b")}
	ex := &fakeExecutor{fail: map[string]error{"b": stderrors.New("push rejected")}}

	r := New(st, pl, ex, Config{Owner: "test", ResumeCurrent: true})

	_, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.StatusCurrent, mustGet(t, st, tk.ID).Status)

	delete(ex.fail, "b")
	report, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, pl.calls)
	require.Len(t, report.Tasks, 1)
	assert.True(t, report.Tasks[0].Resumed)
	assert.Equal(t, OutcomeCompleted, report.Tasks[0].Outcome)
	assert.Equal(t, []string{"a", "b", "b"}, ex.executed)
	assert.Equal(t, task.StatusCompleted, mustGet(t, st, tk.ID).Status)
}

func TestResumeRunsOnlyIncompleteJobs(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())

	tk.Status = task.StatusCurrent
	tk.ClaimedBy = "test"
	tk.Jobs = jobs("research", "one", "research", "two", "code", "three")
	require.NoError(t, tk.Jobs[0].Complete("kept", time.Now()))
	require.NoError(t, st.Save(context.Background(), tk))

	pl := &fakePlanner{}
	ex := &fakeExecutor{}
	report, err := New(st, pl, ex, Config{Owner: "test", ResumeCurrent: true}).RunPendingPass(context.Background())
	require.NoError(t, err)

	assert.Zero(t, pl.calls)
	assert.Equal(t, []string{"two", "three"}, ex.executed)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, 2, report.Tasks[0].JobsRun)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "kept", got.Jobs[0].Result)
}

func TestResumeRespectsForeignLease(t *testing.T) {
	fresh := time.Now().UTC()
	stale := fresh.Add(-time.Hour)

	tests := []struct {
		name      string
		claimedBy string
		claimedAt *time.Time
		wantRun   bool
	}{
		{"own lease", "test", &fresh, true},
		{"foreign fresh lease", "other", &fresh, false},
		{"foreign stale lease", "other", &stale, true},
		{"no lease", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			tk := createTask(t, st, "t", time.Now())
			tk.Status = task.StatusCurrent
			tk.ClaimedBy = tt.claimedBy
			tk.ClaimedAt = tt.claimedAt
			tk.Jobs = jobs("research", "a")
			require.NoError(t, st.Save(context.Background(), tk))

			ex := &fakeExecutor{}
			r := New(st, &fakePlanner{}, ex, Config{Owner: "test", ResumeCurrent: true, LeaseTTL: time.Minute})
			_, err := r.RunPendingPass(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantRun, len(ex.executed) == 1)
		})
	}
}

func TestCurrentTasksIgnoredWithoutResume(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	tk.Status = task.StatusCurrent
	tk.Jobs = jobs("research", "a")
	require.NoError(t, st.Save(context.Background(), tk))

	ex := &fakeExecutor{}
	report, err := New(st, &fakePlanner{}, ex, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Tasks)
	assert.Empty(t, ex.executed)
}

func TestUnsupportedJobTypeRejectsPlan(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := planner.New(&stubClient{
		content: `{"jobs":[{"type":"research","description":"ok"},{"type":"deploy","description":"ship"}]}`,
	}, planner.Options{})
	ex := &fakeExecutor{}

	report, err := New(st, pl, ex, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeAborted, report.Tasks[0].Outcome)
	assert.True(t, stderrors.Is(report.Tasks[0].Err, errors.ErrPlanValidation))
	assert.Empty(t, ex.executed)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCurrent, got.Status)
	assert.Empty(t, got.Jobs)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "deploy")
}

func TestUnknownPersistedTypeIsSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	tk.Status = task.StatusCurrent
	tk.Jobs = []task.Job{
		{Type: "deploy", Description: "ship it"},
		task.NewJob(task.JobResearch, "golang"),
	}
	require.NoError(t, st.Save(context.Background(), tk))

	d := &executor.Dispatcher{
		Research: executor.NewResearch(&stubSearcher{results: []search.Result{{Snippet: "Go is fun"}}}, 3),
	}
	report, err := New(st, &fakePlanner{}, d, Config{ResumeCurrent: true}).RunPendingPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeIncomplete, report.Tasks[0].Outcome)
	assert.Equal(t, 1, report.Tasks[0].JobsSkipped)
	assert.NoError(t, report.Tasks[0].Err)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCurrent, got.Status)
	assert.False(t, got.Jobs[0].Completed)
	assert.True(t, got.Jobs[1].Completed)
	assert.Equal(t, "Go is fun", got.Jobs[1].Result)
	assert.Zero(t, got.Attempts)
}

func TestResearchEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := planner.New(&stubClient{content: `{"jobs":[{"type":"research","description":"golang generics"}]}`}, planner.Options{})
	d := &executor.Dispatcher{
		Research: executor.NewResearch(&stubSearcher{results: []search.Result{
			{Snippet: "snippet one"},
			{Snippet: "snippet two"},
			{Snippet: "snippet three"},
			{Snippet: "snippet four"},
		}}, 3),
	}

	report, err := New(st, pl, d, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeCompleted))

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCompleted, got.Status)
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, "snippet one\nsnippet two\nsnippet three", got.Jobs[0].Result)
}

func TestFailingCodeJobKeepsEarlierProgress(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "look up", "code", "write")}
	d := &executor.Dispatcher{
		Research: executor.StrategyFunc(func(ctx context.Context, job task.Job) (string, error) {
			return "notes", nil
		}),
		Code: executor.StrategyFunc(func(ctx context.Context, job task.Job) (string, error) {
			return "", stderrors.New("push rejected")
		}),
	}

	report, err := New(st, pl, d, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeAborted, report.Tasks[0].Outcome)
	assert.True(t, stderrors.Is(report.Tasks[0].Err, errors.ErrExecution))
	assert.Len(t, report.Errors(), 1)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCurrent, got.Status)
	assert.True(t, got.Jobs[0].Completed)
	assert.Equal(t, "notes", got.Jobs[0].Result)
	assert.False(t, got.Jobs[1].Completed)
	assert.Empty(t, got.Jobs[1].Result)
	assert.Contains(t, got.LastError, "push rejected")
}

func TestMaxAttemptsMovesTaskToFailed(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{err: errors.NewPlanValidationError("empty plan")}
	notifier := &recordingNotifier{}

	r := New(st, pl, &fakeExecutor{}, Config{MaxAttempts: 1})
	r.SetHooks(notifier)
	report, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(OutcomeFailed))
	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, notifier.types(), hooks.EventTaskFailed)
}

func TestFailureDoesNotStopScan(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Now()
	first := createTask(t, st, "first", base)
	second := createTask(t, st, "second", base.Add(time.Second))

	pl := &fakePlanner{jobs: jobs("research", "a")}
	calls := 0
	ex := executor.StrategyFunc(func(ctx context.Context, job task.Job) (string, error) {
		calls++
		if calls == 1 {
			return "", stderrors.New("boom")
		}
		return "ok", nil
	})

	report, err := New(st, pl, ex, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Tasks, 2)
	assert.Equal(t, first.ID, report.Tasks[0].TaskID)
	assert.Equal(t, OutcomeAborted, report.Tasks[0].Outcome)
	assert.Equal(t, second.ID, report.Tasks[1].TaskID)
	assert.Equal(t, OutcomeCompleted, report.Tasks[1].Outcome)
}

func TestTaskPersistedAfterEveryJob(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "a", "research", "b", "research", "c")}

	var seen [][]bool
	ex := &fakeExecutor{}
	ex.before = func(job task.Job) {
		got := mustGet(t, st, tk.ID)
		var done []bool
		for _, j := range got.Jobs {
			done = append(done, j.Completed)
		}
		seen = append(seen, done)
	}

	_, err := New(st, pl, ex, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]bool{
		{false, false, false},
		{true, false, false},
		{true, true, false},
	}, seen)
}

func TestCancelledContextStopsBetweenJobs(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "a", "research", "b")}

	ctx, cancel := context.WithCancel(context.Background())
	ex := &fakeExecutor{before: func(job task.Job) { cancel() }}

	report, err := New(st, pl, ex, Config{}).RunPendingPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeAborted, report.Tasks[0].Outcome)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCurrent, got.Status)
	assert.True(t, got.Jobs[0].Completed, "work finished before cancellation is persisted")
	assert.False(t, got.Jobs[1].Completed)
	assert.Zero(t, got.Attempts)
}

// cancellingPlanner cancels the pass while the model call is in flight.
type cancellingPlanner struct {
	cancel context.CancelFunc
}

func (p *cancellingPlanner) Decompose(ctx context.Context, description string) ([]task.Job, error) {
	p.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelDuringPlanningCountsNoAttempt(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	notifier := &recordingNotifier{}
	r := New(st, &cancellingPlanner{cancel: cancel}, &fakeExecutor{}, Config{MaxAttempts: 1})
	r.SetHooks(notifier)

	report, err := r.RunPendingPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeAborted, report.Tasks[0].Outcome)

	got := mustGet(t, st, tk.ID)
	assert.Equal(t, task.StatusCurrent, got.Status)
	assert.Zero(t, got.Attempts)
	assert.Empty(t, got.LastError)
	assert.NotContains(t, notifier.types(), hooks.EventPlanRejected)
	assert.NotContains(t, notifier.types(), hooks.EventTaskFailed)
}

func TestCorruptFileRecordDoesNotBlockPass(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFileStore(dir)
	require.NoError(t, err)
	st.SetLogger(log.Nop())

	tk := createTask(t, st, "good", time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	report, err := New(st, &fakePlanner{jobs: jobs("research", "a")}, &fakeExecutor{}, Config{}).RunPendingPass(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, OutcomeCompleted, report.Tasks[0].Outcome)
	assert.Equal(t, task.StatusCompleted, mustGet(t, st, tk.ID).Status)
}

// conflictStore loses every claim, as if another pass got there first.
type conflictStore struct {
	store.Store
}

func (s conflictStore) Claim(ctx context.Context, id, owner string) (*task.Task, error) {
	return nil, errors.New(errors.ErrCodeTaskAlreadyClaimed, "already claimed")
}

func TestLostClaimSkipsTask(t *testing.T) {
	mem := store.NewMemoryStore()
	createTask(t, mem, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "a")}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := New(conflictStore{mem}, pl, &fakeExecutor{}, Config{})
	r.SetMetrics(m)

	report, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeSkipped))
	assert.Zero(t, pl.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ClaimConflict))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*hooks.Event
}

func (n *recordingNotifier) Trigger(ctx context.Context, event *hooks.Event) []hooks.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return []hooks.Result{{HookName: "rec", EventType: event.Type, Err: stderrors.New("ignored")}}
}

func (n *recordingNotifier) types() []hooks.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []hooks.EventType
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

func TestHooksAndMetrics(t *testing.T) {
	st := store.NewMemoryStore()
	tk := createTask(t, st, "t", time.Now())
	pl := &fakePlanner{jobs: jobs("research", "a", "code", "b")}
	notifier := &recordingNotifier{}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := New(st, pl, &fakeExecutor{}, Config{})
	r.SetHooks(notifier)
	r.SetMetrics(m)

	_, err := r.RunPendingPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []hooks.EventType{
		hooks.EventTaskClaimed,
		hooks.EventPlanCreated,
		hooks.EventJobCompleted,
		hooks.EventJobCompleted,
		hooks.EventTaskCompleted,
	}, notifier.types())
	assert.Equal(t, tk.ID, notifier.events[0].TaskID)
	assert.Equal(t, task.StatusCompleted, mustGet(t, st, tk.ID).Status, "hook failures do not change task state")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksClaimed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskOutcomes.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Jobs.WithLabelValues("research", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Jobs.WithLabelValues("code", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PlannerCalls.WithLabelValues("true")))
}

func TestListFailureIsReturned(t *testing.T) {
	r := New(failingListStore{store.NewMemoryStore()}, &fakePlanner{}, &fakeExecutor{}, Config{})
	_, err := r.RunPendingPass(context.Background())
	assert.Error(t, err)
}

type failingListStore struct {
	store.Store
}

func (s failingListStore) List(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return nil, errors.NewStoreError("list", stderrors.New("disk gone"))
}

func TestOwnerDefaults(t *testing.T) {
	r := New(store.NewMemoryStore(), &fakePlanner{}, &fakeExecutor{}, Config{})
	assert.Regexp(t, `^runner-[0-9a-f]{8}$`, r.Owner())
	assert.Equal(t, DefaultInterval, r.Config().Interval)
	assert.Equal(t, DefaultLeaseTTL, r.Config().LeaseTTL)
}
