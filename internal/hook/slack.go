package hook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/vianscientific/apicheck/internal/model"
)

// maxListedFailures caps the failures listed in a single message.
const maxListedFailures = 20

// SlackHook posts a message to a slack channel when a suite run fails.
type SlackHook struct {
	api             *slack.Client
	notifyChannelID string
	// monitorURL is the public address of the monitor that links runs.
	// Empty disables links.
	monitorURL string

	log logrus.FieldLogger
}

func NewSlackHook(channelID, token, monitorURL string, log logrus.FieldLogger, opts ...slack.Option) *SlackHook {
	return &SlackHook{
		api:             slack.New(token, opts...),
		notifyChannelID: channelID,
		monitorURL:      strings.TrimRight(monitorURL, "/"),
		log:             log.WithField("component", "slack-hook"),
	}
}

func (h *SlackHook) Name() string {
	return "Slack"
}

func (h *SlackHook) Init() error {
	_, err := h.api.AuthTest()
	if err != nil {
		return fmt.Errorf("invalid auth token: %w", err)
	}

	return nil
}

func (h *SlackHook) SuiteFinished(suite model.Suite, run model.SuiteRun) {
	if run.Result != model.ResultFailed {
		return
	}

	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(
			"mrkdwn",
			h.message(suite, run),
			false, false,
		),

		nil, nil)

	_, _, err := h.api.PostMessage(h.notifyChannelID, slack.MsgOptionBlocks(section))
	if err != nil {
		h.log.WithError(err).Error("unable to send slack message")
	}
}

func (h *SlackHook) message(suite model.Suite, run model.SuiteRun) string {
	b := strings.Builder{}

	title := fmt.Sprintf("%s: %d", suite.Name, run.ID)
	if h.monitorURL != "" {
		title = "<" + h.monitorURL + "/ui/runs/" + strconv.Itoa(run.ID) + "|" + title + ">"
	}

	fmt.Fprintf(&b, "Suite run %s failed: %d of %d checks failed (%.1f%% passed).\n\n",
		title, run.Summary.Failed, run.Summary.Total(), run.Summary.SuccessRate())
	b.WriteString("Failures:\n")

	for i, o := range run.Summary.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "- ... and %d more\n", len(run.Summary.Failures)-maxListedFailures)
			break
		}

		fmt.Fprintf(&b, "- %s / %s: %s\n", o.Test, o.Name, o.Message)
	}

	return b.String()
}
