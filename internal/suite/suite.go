// Package suite contains the checks run against the Vian Scientific
// e-commerce backend. Each check is a test function that records one outcome
// per assertion. The order of Tests matters: later tests read tokens and
// entity ids written to the Session by earlier ones.
package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/mail"
	"github.com/vianscientific/apicheck/internal/model"
)

const Name = "vian-scientific"

const (
	GroupCore       = "core"
	GroupAuth       = "auth"
	GroupContent    = "content"
	GroupRegression = "regression"
	GroupCatalog    = "catalog"
	GroupQuotes     = "quotes"
	GroupAdmin      = "admin"
	GroupAuthz      = "authz"
	GroupProfile    = "profile"
	GroupEmail      = "email"
)

// Entity kinds in addition to the ones of the model package.
const (
	entityWelcomeUser model.EntityKind = "welcome-user"
)

const defaultRootMessage = "Vian Scientific"

// EmailSettings is the email configuration of the backend, checked by the
// email configuration test.
type EmailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Options struct {
	Client *apiclient.Client
	// Observer confirms email delivery. Delivery checks are skipped if nil.
	Observer mail.DeliveryObserver
	Email    EmailSettings
	// ExpectedCategoryCount is the number of categories the product form offers.
	ExpectedCategoryCount int
	// Strict enables exact response text expectations, e.g. the exact forgot
	// password message instead of a substring match.
	Strict bool
	// RootMessage must be part of the message returned by `GET /`.
	RootMessage string
	Log         logrus.FieldLogger
}

// Checks holds the collaborators shared by all test functions.
type Checks struct {
	client             *apiclient.Client
	observer           mail.DeliveryObserver
	email              EmailSettings
	expectedCategories int
	strict             bool
	rootMessage        string
	log                logrus.FieldLogger
}

func NewChecks(opts Options) *Checks {
	c := &Checks{
		client:             opts.Client,
		observer:           opts.Observer,
		email:              opts.Email,
		expectedCategories: opts.ExpectedCategoryCount,
		strict:             opts.Strict,
		rootMessage:        opts.RootMessage,
		log:                opts.Log,
	}

	if c.expectedCategories <= 0 {
		c.expectedCategories = 8
	}
	if c.rootMessage == "" {
		c.rootMessage = defaultRootMessage
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	c.log = c.log.WithField("component", "suite")

	return c
}

// New returns the suite in execution order.
func New(opts Options) apicheck.Suite {
	c := NewChecks(opts)

	return apicheck.Suite{
		Name:        Name,
		Description: "Black-box checks of the authentication, catalog, quote, admin, content and email endpoints",
		Setup:       c.setup,
		Teardown:    c.teardown,
		Tests: []apicheck.Test{
			{Name: "RootEndpoint", Group: GroupCore, Func: c.RootEndpoint},

			{Name: "UserRegistration", Group: GroupAuth, Func: c.UserRegistration},
			{Name: "UserLogin", Group: GroupAuth, Func: c.UserLogin},
			{Name: "AdminLogin", Group: GroupAuth, Func: c.AdminLogin},

			{Name: "PublicContent", Group: GroupContent, Func: c.PublicContent},
			{Name: "AdminContentManagement", Group: GroupContent, Func: c.AdminContentManagement},
			{Name: "ContentAuthorization", Group: GroupContent, Func: c.ContentAuthorization},
			{Name: "ContentAuditLog", Group: GroupContent, Func: c.ContentAuditLog},

			{Name: "Regression", Group: GroupRegression, Func: c.Regression},

			{Name: "CurrentUser", Group: GroupAuth, Func: c.CurrentUser},
			{Name: "PasswordResetFlow", Group: GroupAuth, Func: c.PasswordResetFlow},
			{Name: "ChangePassword", Group: GroupAuth, Func: c.ChangePassword},

			{Name: "Products", Group: GroupCatalog, Func: c.Products},
			{Name: "Categories", Group: GroupCatalog, Func: c.Categories},
			{Name: "CategoryFormData", Group: GroupCatalog, Func: c.CategoryFormData},

			{Name: "QuoteManagement", Group: GroupQuotes, Func: c.QuoteManagement},

			{Name: "AdminUserAccounts", Group: GroupAdmin, Func: c.AdminUserAccounts},
			{Name: "AdminUserManagement", Group: GroupAdmin, Func: c.AdminUserManagement},
			{Name: "AdminProductCRUD", Group: GroupAdmin, Func: c.AdminProductCRUD},
			{Name: "AdminQuotes", Group: GroupAdmin, Func: c.AdminQuotes},
			{Name: "AuditLogs", Group: GroupAdmin, Func: c.AuditLogs},
			{Name: "ProductAuditTrail", Group: GroupAdmin, Func: c.ProductAuditTrail},

			{Name: "AdminEndpointsWithoutToken", Group: GroupAuthz, Func: c.AdminEndpointsWithoutToken},
			{Name: "AdminEndpointsWithUserToken", Group: GroupAuthz, Func: c.AdminEndpointsWithUserToken},

			{Name: "ProfileUserID", Group: GroupProfile, Func: c.ProfileUserID},
			{Name: "ProfileAdminID", Group: GroupProfile, Func: c.ProfileAdminID},

			{Name: "EmailConfiguration", Group: GroupEmail, Func: c.EmailConfiguration},
			{Name: "EmailServiceHealth", Group: GroupEmail, Func: c.EmailServiceHealth},
			{Name: "ForgotPasswordEmail", Group: GroupEmail, Func: c.ForgotPasswordEmail},
			{Name: "WelcomeEmail", Group: GroupEmail, Func: c.WelcomeEmail},
			{Name: "ExpiredResetCode", Group: GroupEmail, Func: c.ExpiredResetCode},
		},
	}
}

type Credentials struct {
	AdminEmail    string
	AdminPassword string
	UserPassword  string
	UserName      string
}

// NewSession creates the session of one run with a unique test user email.
func NewSession(baseURL string, creds Credentials) *apicheck.Session {
	s := apicheck.NewSession(baseURL)

	s.AdminEmail = creds.AdminEmail
	s.AdminPassword = creds.AdminPassword
	s.UserEmail = uniqueEmail("testuser")
	s.UserPassword = creds.UserPassword
	s.UserName = creds.UserName

	if s.UserPassword == "" {
		s.UserPassword = "TestUser@123"
	}
	if s.UserName == "" {
		s.UserName = "Test User"
	}

	return s
}

func (c *Checks) setup(_ context.Context, s *apicheck.Session) error {
	if s.AdminEmail == "" || s.AdminPassword == "" {
		c.log.Warn("no admin credentials configured, admin checks will fail")
	}

	c.log.WithFields(logrus.Fields{
		"base-url":  c.client.BaseURL(),
		"test-user": s.UserEmail,
	}).Info("starting checks")

	return nil
}

// teardown removes the users registered during the run.
func (c *Checks) teardown(ctx context.Context, s *apicheck.Session) error {
	if !s.HasAdminToken() {
		if len(s.IDs()) > 0 {
			c.log.Warn("no admin token, registered users are not removed")
		}
		return nil
	}

	for _, kind := range []model.EntityKind{model.EntityUser, entityWelcomeUser} {
		id, ok := s.ID(kind)
		if !ok {
			continue
		}

		c.deleteBestEffort(ctx, "/admin/users/"+id, s.AdminToken, string(kind))
		s.ForgetID(kind)
	}

	return nil
}

// deleteBestEffort deletes a remote entity. Failures are logged only.
func (c *Checks) deleteBestEffort(ctx context.Context, path, token, what string) {
	log := c.log.WithFields(logrus.Fields{"path": path, "entity": what})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ex, err := c.client.Delete(ctx, path, apiclient.WithBearer(token))
	if err != nil {
		log.WithError(err).Warn("cleanup failed")
		return
	}

	if ex.StatusCode != 200 && ex.StatusCode != 204 && ex.StatusCode != 404 {
		log.WithField("status", ex.StatusCode).Warn("cleanup failed")
		return
	}

	log.Debug("cleaned up")
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}
