package smtpprobe

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

type FailureKind string

const (
	// KindAuth means the server rejected the credentials.
	KindAuth FailureKind = "auth-failure"
	// KindProtocol means the server answered out of sequence.
	KindProtocol FailureKind = "protocol-failure"
	KindNetwork  FailureKind = "network-failure"
	KindUnknown  FailureKind = "unknown"
)

var (
	authPatterns = []string{
		"badcredentials",
		"username and password not accepted",
		"authentication failed",
		"authentication unsuccessful",
	}

	protocolPatterns = []string{
		"starttls not offered",
		"no supported auth mechanism",
	}

	networkPatterns = []string{
		"connection refused",
		"i/o timeout",
		"timed out",
		"no such host",
		"connection reset",
		"network is unreachable",
		"broken pipe",
		"eof",
	}

	// Reply codes only count as a whole token, never inside a port, an
	// address or a host name.
	authCode     = replyCode("53[45]")
	protocolCode = replyCode("334")
)

func replyCode(code string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[\s(\[,'"])` + code + `(?:[\s,.)\]-]|$)`)
}

func containsAny(text string, patterns []string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		return strings.Contains(text, p)
	})
}

// Classify maps the text of an SMTP error to a failure kind. Keywords win
// over reply codes, and a credential rejection that mentions a 334 challenge
// counts as an authentication failure.
func Classify(text string) FailureKind {
	text = strings.ToLower(text)

	switch {
	case containsAny(text, authPatterns):
		return KindAuth
	case containsAny(text, protocolPatterns):
		return KindProtocol
	case containsAny(text, networkPatterns):
		return KindNetwork
	case authCode.MatchString(text):
		return KindAuth
	case protocolCode.MatchString(text):
		return KindProtocol
	}

	return KindUnknown
}

// classifyErr uses the reply code or error type where available and falls
// back to Classify.
func classifyErr(err error) FailureKind {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 535 || protoErr.Code == 534:
			return KindAuth
		case protoErr.Code == 334:
			return KindProtocol
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return Classify(err.Error())
}

// Failure is the reason a probe ended in StateFailed.
type Failure struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func newFailure(stage Stage, err error) *Failure {
	return &Failure{Stage: stage, Kind: classifyErr(err), Err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
