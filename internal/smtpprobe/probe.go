// Package smtpprobe diagnoses the SMTP account the backend sends email with.
// A probe walks through connect, EHLO, STARTTLS and AUTH once and stops at
// the first failure. It never sends a message.
package smtpprobe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/metric"
	"golang.org/x/exp/slices"
)

type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnected     State = "connected"
	StateGreeted       State = "greeted"
	StateSecureChannel State = "secure-channel"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
)

type Stage string

const (
	StageConnect  Stage = "connect"
	StageEHLO     Stage = "ehlo"
	StageStartTLS Stage = "starttls"
	StageAuth     Stage = "auth"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	// TLSConfig is used for STARTTLS, nil verifies the certificate of Host.
	TLSConfig *tls.Config
	// LocalName is sent with EHLO, defaults to localhost.
	LocalName string
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Step is a single completed transition of a probe.
type Step struct {
	Stage    Stage         `json:"stage"`
	State    State         `json:"state"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Result struct {
	Config   Config
	State    State
	Steps    []Step
	Failure  *Failure
	Duration time.Duration
}

func (r Result) Authenticated() bool {
	return r.State == StateAuthenticated
}

type Probe struct {
	cfg  Config
	log  logrus.FieldLogger
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

type Option func(*Probe)

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Probe) {
		p.log = log
	}
}

func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(p *Probe) {
		p.dial = dial
	}
}

func New(cfg Config, opts ...Option) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}

	p := &Probe{
		cfg: cfg,
		log: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.dial == nil {
		d := net.Dialer{Timeout: cfg.Timeout}
		p.dial = d.DialContext
	}

	p.log = p.log.WithFields(logrus.Fields{
		"component": "smtpprobe",
		"addr":      cfg.addr(),
	})

	return p
}

// Run executes the probe. The result is always complete, a failure is
// reported in Result.Failure and not as an error.
func (p *Probe) Run(ctx context.Context) Result {
	start := time.Now()

	r := p.run(ctx)
	r.Duration = time.Since(start)

	kind := ""
	if r.Failure != nil {
		kind = string(r.Failure.Kind)
	}
	metric.SMTPProbesTotal.WithLabelValues(string(r.State), kind).Inc()

	log := p.log.WithFields(logrus.Fields{
		"state":    r.State,
		"duration": r.Duration,
	})
	if r.Failure != nil {
		log.WithError(r.Failure).Warn("smtp probe failed")
	} else {
		log.Info("smtp probe succeeded")
	}

	return r
}

func (p *Probe) run(ctx context.Context) Result {
	r := Result{Config: p.cfg, State: StateDisconnected, Steps: []Step{}}

	step := time.Now()
	advance := func(stage Stage, state State, detail string) {
		r.State = state
		r.Steps = append(r.Steps, Step{Stage: stage, State: state, Detail: detail, Duration: time.Since(step)})
		step = time.Now()
		p.log.WithField("stage", stage).Debugf("reached %s", state)
	}
	fail := func(stage Stage, err error) Result {
		r.State = StateFailed
		r.Failure = newFailure(stage, err)
		return r
	}

	conn, err := p.dial(ctx, "tcp", p.cfg.addr())
	if err != nil {
		return fail(StageConnect, err)
	}

	deadline := time.Now().Add(p.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return fail(StageConnect, err)
	}
	defer c.Close()

	advance(StageConnect, StateConnected, "")

	if err := c.Hello(p.cfg.LocalName); err != nil {
		return fail(StageEHLO, err)
	}

	advance(StageEHLO, StateGreeted, "")

	ok, _ := c.Extension("STARTTLS")

	if !ok {
		return fail(StageStartTLS, errors.New("STARTTLS not offered"))
	}

	tlsConfig := p.cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: p.cfg.Host}
	}

	// StartTLS repeats the EHLO on the secure channel.
	if err := c.StartTLS(tlsConfig); err != nil {
		return fail(StageStartTLS, err)
	}

	advance(StageStartTLS, StateSecureChannel, "")

	auth, mechanism, err := p.auth(c)
	if err != nil {
		return fail(StageAuth, err)
	}

	if err := c.Auth(auth); err != nil {
		return fail(StageAuth, err)
	}

	advance(StageAuth, StateAuthenticated, mechanism)

	_ = c.Quit()

	return r
}

// auth selects PLAIN if the server offers it and LOGIN otherwise.
func (p *Probe) auth(c *smtp.Client) (smtp.Auth, string, error) {
	ok, params := c.Extension("AUTH")
	if !ok {
		return nil, "", errors.New("no supported AUTH mechanism offered")
	}

	mechanisms := strings.Fields(strings.ToUpper(params))

	switch {
	case slices.Contains(mechanisms, "PLAIN"):
		return smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host), "PLAIN", nil
	case slices.Contains(mechanisms, "LOGIN"):
		return &loginAuth{username: p.cfg.Username, password: p.cfg.Password}, "LOGIN", nil
	default:
		return nil, "", errors.New("no supported AUTH mechanism in " + params)
	}
}

// loginAuth implements the LOGIN mechanism, which net/smtp does not provide.
type loginAuth struct {
	username string
	password string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, errors.New("unencrypted connection")
	}

	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
	case "username:", "user name", "username":
		return []byte(a.username), nil
	case "password:", "password":
		return []byte(a.password), nil
	default:
		return nil, errors.New("334 unexpected server challenge: " + string(fromServer))
	}
}
