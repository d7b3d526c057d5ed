package model

// EntityKind names a kind of remote entity a test created.
type EntityKind string

const (
	EntityProduct   EntityKind = "product"
	EntityQuote     EntityKind = "quote"
	EntityUser      EntityKind = "user"
	EntityAdminUser EntityKind = "admin-user"
	EntityContent   EntityKind = "content"
)

// Session is the state shared by the test functions of one suite run. Tests
// read and write it as a side effect, e.g. a login stores a token that later
// tests use. It is owned by the runner and never accessed concurrently.
type Session struct {
	BaseURL string

	// UserEmail, UserPassword and UserName identify the regular test user.
	// UserPassword changes when a test changes or resets the password.
	UserEmail    string
	UserPassword string
	UserName     string

	AdminEmail    string
	AdminPassword string

	// UserToken and AdminToken are empty until the respective login succeeded.
	UserToken  string
	AdminToken string

	ids map[EntityKind]string
}

func NewSession(baseURL string) *Session {
	return &Session{
		BaseURL: baseURL,
		ids:     map[EntityKind]string{},
	}
}

func (s *Session) HasUserToken() bool {
	return s.UserToken != ""
}

func (s *Session) HasAdminToken() bool {
	return s.AdminToken != ""
}

// SetID remembers the identifier of an entity created by a test.
func (s *Session) SetID(kind EntityKind, id string) {
	if s.ids == nil {
		s.ids = map[EntityKind]string{}
	}

	s.ids[kind] = id
}

// ID returns the identifier of a created entity.
func (s *Session) ID(kind EntityKind) (string, bool) {
	id, ok := s.ids[kind]
	return id, ok && id != ""
}

// ForgetID drops the identifier, e.g. after the entity was deleted.
func (s *Session) ForgetID(kind EntityKind) {
	delete(s.ids, kind)
}

// IDs returns a copy of all created entity identifiers.
func (s *Session) IDs() map[EntityKind]string {
	ids := make(map[EntityKind]string, len(s.ids))
	for k, v := range s.ids {
		ids[k] = v
	}

	return ids
}
