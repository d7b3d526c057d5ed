package apicheck_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/client"
	"github.com/vianscientific/apicheck/internal/model"
)

const defaultTimeout = 3 * time.Second

type monitor struct {
	server *apicheck.Server
	client client.Client
	addr   string
}

func monitorSuite() apicheck.Suite {
	return apicheck.Suite{
		Name: "monitor",
		Tests: []apicheck.Test{
			{Name: "Success", Group: "core", Func: Success},
			{Name: "Failure", Group: "failing", Func: Failure},
		},
	}
}

func startMonitor(t *testing.T, opts ...apicheck.ServerOption) *monitor {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	runner := newRunner(t)

	opts = append([]apicheck.ServerOption{
		apicheck.WithPort(0),
		apicheck.WithServerLogger(quietLogger()),
	}, opts...)

	server, err := apicheck.NewServer(runner, monitorSuite(), func() *apicheck.Session {
		return apicheck.NewSession("http://localhost")
	}, opts...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	server.WaitForStartup()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := "http://" + server.Addr()

	return &monitor{
		server: server,
		client: client.New(addr, http.DefaultClient),
		addr:   addr,
	}
}

func (m *monitor) waitForRun(t *testing.T, id int) client.SuiteRun {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	run, err := m.client.WaitForRun(ctx, id, 20*time.Millisecond)
	require.NoError(t, err, "waiting for run %d", id)

	return run
}

func TestCreateRunSucceeds(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	run, err := m.client.CreateRun(context.Background(), "", []string{"core"})
	require.NoError(t, err)
	assert.Equal(t, model.ResultPending, run.Result)
	assert.Equal(t, "http", run.Params.TriggeredBy)

	run = m.waitForRun(t, run.ID)
	assert.Equal(t, model.ResultPassed, run.Result)
	assert.Equal(t, 1, run.Summary.Passed)
	require.Len(t, run.TestResults, 1)
	assert.Equal(t, model.ResultPassed, run.TestResults[0].Result)
}

func TestRunWithFailingTestFails(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	run, err := m.client.CreateRun(context.Background(), "", nil)
	require.NoError(t, err)

	run = m.waitForRun(t, run.ID)
	assert.Equal(t, model.ResultFailed, run.Result)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Len(t, run.Outcomes, 2)
}

func TestRunsAreExecutedOneAfterAnother(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	ids := []int{}
	for i := 0; i < 3; i++ {
		run, err := m.client.CreateRun(context.Background(), "^Success$", nil)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	var previous client.SuiteRun
	for _, id := range ids {
		run := m.waitForRun(t, id)
		assert.Equal(t, model.ResultPassed, run.Result)

		if previous.ID != 0 {
			assert.False(t, run.Start.Before(previous.End), "run %d started before run %d ended", run.ID, previous.ID)
		}
		previous = run
	}

	latest, err := m.client.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids[len(ids)-1], latest.ID)
}

func TestRunWithInvalidFilterReturns400(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	_, err := m.client.CreateRun(context.Background(), "(", nil)

	var reqError client.RequestError
	require.True(t, errors.As(err, &reqError), "expected RequestError but got %T: %v", err, err)
	assert.Equal(t, http.StatusBadRequest, reqError.ResponseCode)
}

func TestRunWithUnknownGroupReturns400(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	_, err := m.client.CreateRun(context.Background(), "", []string{"unknown"})

	var reqError client.RequestError
	require.True(t, errors.As(err, &reqError), "expected RequestError but got %T: %v", err, err)
	assert.Equal(t, http.StatusBadRequest, reqError.ResponseCode)
}

func TestUnknownRunReturns404(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	_, err := m.client.GetRun(context.Background(), 4711)

	var reqError client.RequestError
	require.True(t, errors.As(err, &reqError), "expected RequestError but got %T: %v", err, err)
	assert.Equal(t, http.StatusNotFound, reqError.ResponseCode)

	_, err = m.client.LatestRun(context.Background())
	require.True(t, errors.As(err, &reqError))
	assert.Equal(t, http.StatusNotFound, reqError.ResponseCode)
}

func TestMalformedRunIDReturns400(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	res, err := http.Get(m.addr + "/runs/abc")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRunPageIsRendered(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	run, err := m.client.CreateRun(context.Background(), "", nil)
	require.NoError(t, err)
	m.waitForRun(t, run.ID)

	res, err := http.Get(fmt.Sprintf("%s/ui/runs/%d", m.addr, run.ID))
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "expected status 200, got 500")
}

func TestMetricsAreExposed(t *testing.T) {
	t.Parallel()

	m := startMonitor(t)

	run, err := m.client.CreateRun(context.Background(), "", nil)
	require.NoError(t, err)
	m.waitForRun(t, run.ID)

	res, err := http.Get(m.addr + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "apicheck_outcomes_total"))
}

func TestScheduledRunIsCreated(t *testing.T) {
	t.Parallel()

	m := startMonitor(t, apicheck.WithScheduledRun(apicheck.ScheduledRun{
		Schedule: "@every 1s",
		Params:   apicheck.RunParams{Groups: []string{"core"}},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		run, err := m.client.LatestRun(ctx)
		if err == nil && run.Result != model.ResultPending {
			assert.Equal(t, "scheduled", run.Params.TriggeredBy)
			assert.Equal(t, model.ResultPassed, run.Result)
			return
		}

		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for scheduled run")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	assert.NoError(t, apicheck.ValidateSchedule("*/5 * * * *"))
	assert.NoError(t, apicheck.ValidateSchedule("0 */5 * * * *"))
	assert.NoError(t, apicheck.ValidateSchedule("@every 15m"))
	assert.Error(t, apicheck.ValidateSchedule("every five minutes"))
}

func TestQueueSizeLimitsWaitingRuns(t *testing.T) {
	server, err := apicheck.NewServer(newRunner(t), monitorSuite(), func() *apicheck.Session {
		return apicheck.NewSession("http://localhost")
	}, apicheck.WithServerLogger(quietLogger()), apicheck.WithQueueSize(2))
	require.NoError(t, err)

	// without a started event loop nothing is taken off the queue
	for i := 0; i < 2; i++ {
		_, _, err := server.Enqueue(apicheck.RunParams{TriggeredBy: "test"})
		require.NoError(t, err)
	}

	_, _, err = server.Enqueue(apicheck.RunParams{TriggeredBy: "test"})
	assert.ErrorContains(t, err, "run queue is full")

	latest, err := server.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, 2, latest.ID)
}
