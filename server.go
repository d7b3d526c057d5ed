package apicheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/model"
	"golang.org/x/sync/errgroup"
)

var errQueueFull = errors.New("run queue is full")

// DefaultQueueSize is the number of runs that can wait for execution.
const DefaultQueueSize = 10

// maxCachedRuns is the number of runs kept in memory, older runs are evicted.
const maxCachedRuns = 100

// Server runs the suite on a schedule and on demand via HTTP. Runs are
// executed one after another by a single event loop, a run never overlaps
// with another one. Finished runs are only kept in memory.
type Server struct {
	host string
	port int

	runner     *Runner
	suite      Suite
	newSession func() *Session

	// runs maps run ids to model.SuiteRun. A run is stored once by the
	// goroutine that queues it and afterwards only written by the event loop.
	runs     sync.Map
	latestID int32

	schedules []ScheduledRun
	cron      *cron.Cron

	events chan event

	listener net.Listener
	ready    chan struct{}

	log logrus.FieldLogger
}

type ServerOption func(s *Server)

// WithPort sets the port of the http server, 0 picks a random free port.
func WithPort(port int) ServerOption {
	return func(s *Server) {
		s.port = port
	}
}

func WithHost(host string) ServerOption {
	return func(s *Server) {
		s.host = host
	}
}

// WithScheduledRun schedules a run at certain intervals.
func WithScheduledRun(sr ScheduledRun) ServerOption {
	return func(s *Server) {
		s.schedules = append(s.schedules, sr)
	}
}

// WithQueueSize sets the number of runs that can wait for execution.
func WithQueueSize(size int) ServerOption {
	return func(s *Server) {
		if size > 0 {
			s.events = make(chan event, size)
		}
	}
}

func WithServerLogger(log logrus.FieldLogger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a monitor for the suite. newSession is called once per
// run so that runs never share tokens or entity ids.
func NewServer(runner *Runner, suite Suite, newSession func() *Session, opts ...ServerOption) (*Server, error) {
	s := &Server{
		host:       "localhost",
		port:       1337,
		runner:     runner,
		suite:      suite,
		newSession: newSession,
		events:     make(chan event, DefaultQueueSize),
		ready:      make(chan struct{}),
		log:        logrus.StandardLogger(),
	}

	for _, o := range opts {
		o(s)
	}

	s.log = s.log.WithField("component", "server")

	if err := runner.hooks.register(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) Name() string {
	return "monitor"
}

func (s *Server) Init() error {
	return nil
}

// TestFinished publishes the progress of the running suite.
func (s *Server) TestFinished(_ model.Suite, run model.SuiteRun, testRun model.TestRun) {
	s.apply(testFinishedEvent{
		runID:    run.ID,
		testRun:  testRun,
		summary:  run.Summary,
		outcomes: run.Outcomes,
	})
}

// Start blocks until ctx is cancelled or the http server fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.port, err)
	}
	s.listener = listener

	if err := s.startSchedules(ctx); err != nil {
		listener.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.eventLoop(gctx)
		return nil
	})

	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.log.Info("shutting down")

		cronCtx := s.cron.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)

		<-cronCtx.Done()

		return err
	})

	s.log.WithField("addr", listener.Addr().String()).Info("monitor started")
	close(s.ready)

	return g.Wait()
}

// WaitForStartup blocks until the server accepts connections.
func (s *Server) WaitForStartup() {
	<-s.ready
}

// Addr returns the address the server listens on, it must only be called
// after startup.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Enqueue queues a run. done receives the finished run.
func (s *Server) Enqueue(params RunParams) (SuiteRun, <-chan SuiteRun, error) {
	run, err := s.runner.newRun(s.suite, params, time.Now())
	if err != nil {
		return SuiteRun{}, nil, err
	}

	done := make(chan model.SuiteRun, 1)

	s.runs.Store(run.ID, run)

	select {
	case s.events <- runQueuedEvent{run: run, done: done}:
	default:
		s.runs.Delete(run.ID)
		return SuiteRun{}, nil, errQueueFull
	}

	s.setLatest(run.ID)
	s.runs.Delete(run.ID - maxCachedRuns)

	s.log.WithFields(logrus.Fields{
		"run-id":       run.ID,
		"triggered-by": params.TriggeredBy,
	}).Info("run queued")

	return run, done, nil
}

// Run returns the run with the given id.
func (s *Server) Run(id int) (SuiteRun, error) {
	val, ok := s.runs.Load(id)
	if !ok {
		return SuiteRun{}, model.NotFoundError{}
	}

	return val.(model.SuiteRun), nil
}

// LatestRun returns the most recently queued run.
func (s *Server) LatestRun() (SuiteRun, error) {
	id := int(atomic.LoadInt32(&s.latestID))
	if id == 0 {
		return SuiteRun{}, model.NotFoundError{}
	}

	return s.Run(id)
}

func (s *Server) setLatest(id int) {
	for {
		current := atomic.LoadInt32(&s.latestID)
		if int32(id) <= current || atomic.CompareAndSwapInt32(&s.latestID, current, int32(id)) {
			return
		}
	}
}

func (s *Server) startSchedules(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(s.log)

	s.cron = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	for i := range s.schedules {
		schedule := s.schedules[i]

		params := schedule.Params
		params.TriggeredBy = "scheduled"

		entryID, err := s.cron.AddFunc(schedule.Schedule, func() {
			_, done, err := s.Enqueue(params)
			if err != nil {
				s.log.WithError(err).Warn("scheduling run failed")
				return
			}

			// block until the run finished so that SkipIfStillRunning
			// skips schedules overlapping with a slow run
			select {
			case <-done:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return fmt.Errorf("adding scheduled run %q: %w", schedule.Schedule, err)
		}

		s.schedules[i].EntryID = entryID
	}

	s.cron.Start()

	return nil
}

// eventLoop loops over all events and updates the runs map accordingly.
// Queued runs are executed right away, which serializes all runs.
func (s *Server) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			s.apply(e)

			queued, ok := e.(runQueuedEvent)
			if !ok {
				continue
			}

			run := s.runner.execute(ctx, s.suite, s.newSession(), queued.run)

			s.apply(runFinishedEvent{run: run})

			queued.done <- run
		}
	}
}

func (s *Server) apply(e event) {
	run := model.SuiteRun{}

	if val, found := s.runs.Load(e.RunID()); found {
		run = val.(model.SuiteRun)
	} else if _, ok := e.(runQueuedEvent); !ok {
		s.log.WithField("run-id", e.RunID()).Warnf("could not handle event %T, run not found", e)
		return
	}

	s.runs.Store(e.RunID(), e.Apply(run))
}
