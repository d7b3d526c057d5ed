package cli

import (
	"fmt"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/hook"
	"github.com/vianscientific/apicheck/internal/mail"
	"github.com/vianscientific/apicheck/internal/suite"
)

func (a *app) newSuite() (apicheck.Suite, error) {
	client := apiclient.New(a.cfg.BaseURL,
		apiclient.WithTimeout(a.cfg.RequestTimeout),
		apiclient.WithLogger(a.log),
	)

	var observer mail.DeliveryObserver

	if addrs := a.cfg.ElasticsearchAddresses(); len(addrs) > 0 {
		o, err := mail.NewElasticObserver(addrs, a.cfg.ElasticsearchIndex, a.log)
		if err != nil {
			return apicheck.Suite{}, fmt.Errorf("creating delivery observer: %w", err)
		}
		observer = o
	} else {
		a.log.Info("ELASTICSEARCH_URL not set, email delivery checks are skipped")
	}

	return suite.New(suite.Options{
		Client:   client,
		Observer: observer,
		Email: suite.EmailSettings{
			Host:     a.cfg.Email.Host,
			Port:     a.cfg.Email.Port,
			Username: a.cfg.Email.Username,
			Password: a.cfg.Email.Password,
			From:     a.cfg.Email.From,
		},
		ExpectedCategoryCount: a.cfg.ExpectedCategoryCount,
		Strict:                a.cfg.StrictExpectations,
		Log:                   a.log,
	}), nil
}

func (a *app) newSession() *apicheck.Session {
	return suite.NewSession(a.cfg.BaseURL, suite.Credentials{
		AdminEmail:    a.cfg.AdminEmail,
		AdminPassword: a.cfg.AdminPassword,
		UserPassword:  a.cfg.TestUserPassword,
		UserName:      a.cfg.TestUserName,
	})
}

// newRunner creates a runner with the slack hook if it is configured.
// monitorURL links failed runs in slack messages, see hook.SlackHook.
func (a *app) newRunner(monitorURL string) (*apicheck.Runner, error) {
	opts := []apicheck.Option{apicheck.WithLogger(a.log)}

	if a.cfg.SlackToken != "" && a.cfg.SlackChannelID != "" {
		opts = append(opts, apicheck.WithHook(hook.NewSlackHook(a.cfg.SlackChannelID, a.cfg.SlackToken, monitorURL, a.log)))
	}

	return apicheck.New(opts...)
}
