package suite_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/vianscientific/apicheck/internal/mail"
)

const (
	adminEmail    = "admin@vianscientific.com"
	adminPassword = "Admin@12345"
)

type user struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Active   bool   `json:"is_active"`
	password string
}

type auditEntry struct {
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	UserEmail string `json:"user_email"`
}

// backend is an in-memory rendition of the Vian Scientific API, just enough
// to let every check pass.
type backend struct {
	mu sync.Mutex

	users    map[string]*user
	tokens   map[string]string
	content  map[string]map[string]any
	products map[string]map[string]any
	quotes   map[string]map[string]any
	audit    []auditEntry

	outbox *mail.Outbox

	// userTokenAdminStatus is returned for admin endpoints called with a
	// user token.
	userTokenAdminStatus int
	// emailError makes every delivery fail with the given message.
	emailError string

	// requests counts the requests per route, e.g. "PUT /products/:id".
	requests map[string]int
	// failing answers a route with the given status instead of handling it.
	failing map[string]int
}

func newBackend() *backend {
	b := &backend{
		users:                map[string]*user{},
		tokens:               map[string]string{},
		content:              map[string]map[string]any{},
		products:             map[string]map[string]any{},
		quotes:               map[string]map[string]any{},
		audit:                []auditEntry{},
		outbox:               mail.NewOutbox(),
		userTokenAdminStatus: http.StatusForbidden,
		requests:             map[string]int{},
		failing:              map[string]int{},
	}

	admin := &user{ID: uuid.NewString(), Email: adminEmail, FullName: "Admin", Role: "admin", Active: true, password: adminPassword}
	b.users[admin.ID] = admin

	id := uuid.NewString()
	b.products[id] = map[string]any{
		"id":           id,
		"cat_no":       "VN-CV09-100",
		"product_name": "9 mm Clear Screw Vials W/O Patch",
		"category":     "analytical-vials",
	}

	return b
}

func (b *backend) start(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)

	return srv.URL
}

func (b *backend) router() *httprouter.Router {
	r := httprouter.New()

	route := func(method, path string, h httprouter.Handle) {
		r.Handle(method, path, b.counted(method+" "+path, h))
	}

	route(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Vian Scientific API"})
	})

	route(http.MethodPost, "/auth/register", b.register)
	route(http.MethodPost, "/auth/login", b.login)
	route(http.MethodGet, "/auth/me", b.authenticated(b.me))
	route(http.MethodPost, "/auth/forgot-password", b.forgotPassword)
	route(http.MethodPost, "/auth/reset-password", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeError(w, http.StatusBadRequest, "Invalid reset code")
	})
	route(http.MethodPost, "/user/change-password", b.authenticated(b.changePassword))

	route(http.MethodGet, "/content", b.listContent)
	route(http.MethodGet, "/admin/content", b.admin(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *user) { b.listContent(w, r, ps) }))
	route(http.MethodPost, "/admin/content", b.admin(b.createContent))
	route(http.MethodPut, "/admin/content/:id", b.admin(b.updateContent))
	route(http.MethodDelete, "/admin/content/:id", b.admin(b.deleteContent))

	route(http.MethodGet, "/products", b.listProducts)
	route(http.MethodGet, "/products/:id", b.getProduct)
	route(http.MethodPost, "/products", b.admin(b.createProduct))
	route(http.MethodPut, "/products/:id", b.admin(b.updateProduct))
	route(http.MethodDelete, "/products/:id", b.admin(b.deleteProduct))

	route(http.MethodGet, "/categories", b.listCategories)
	route(http.MethodGet, "/categories/:slug", b.getCategory)

	route(http.MethodPost, "/quotes", b.authenticated(b.createQuote))
	route(http.MethodGet, "/quotes/:id", b.authenticated(b.getQuote))

	route(http.MethodGet, "/admin/users", b.admin(b.listUsers))
	route(http.MethodPost, "/admin/users", b.admin(b.createUser))
	route(http.MethodDelete, "/admin/users/:id", b.admin(b.deleteUser))
	route(http.MethodPut, "/admin/users/:id/status", b.admin(b.setUserStatus))
	route(http.MethodPost, "/admin/users/:id/reset-password", b.admin(b.resetPassword))

	route(http.MethodGet, "/admin/quotes", b.admin(b.listQuotes))
	route(http.MethodPut, "/admin/quotes/:id/status", b.admin(b.setQuoteStatus))

	route(http.MethodGet, "/admin/audit-logs", b.admin(b.listAuditLogs))

	return r
}

// counted counts a request to route and answers it with an injected
// failure if one is set.
func (b *backend) counted(route string, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		b.mu.Lock()
		b.requests[route]++
		status, fail := b.failing[route]
		b.mu.Unlock()

		if fail {
			writeError(w, status, "Internal server error")
			return
		}

		h(w, r, ps)
	}
}

// failRoute makes every request to route fail with status.
func (b *backend) failRoute(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failing[route] = status
}

func (b *backend) requestCount(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.requests[route]
}

func (b *backend) totalRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, n := range b.requests {
		total += n
	}

	return total
}

type handle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, u *user)

func (b *backend) caller(r *http.Request) *user {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.tokens[token]
	if !ok {
		return nil
	}

	return b.users[id]
}

func (b *backend) authenticated(h handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		u := b.caller(r)
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		h(w, r, ps, u)
	}
}

func (b *backend) admin(h handle) httprouter.Handle {
	return b.authenticated(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, u *user) {
		if u.Role != "admin" {
			writeError(w, b.userTokenAdminStatus, "Admin access required")
			return
		}

		h(w, r, ps, u)
	})
}

func (b *backend) record(action, resource, email string) {
	// newest first
	b.audit = append([]auditEntry{{Action: action, Resource: resource, UserEmail: email}}, b.audit...)
}

func (b *backend) deliver(to string, kind mail.Kind) {
	d := mail.Delivery{Recipient: to, Kind: kind, Sent: b.emailError == "", Error: b.emailError}
	b.outbox.Add(d)
}

func (b *backend) userByEmail(email string) *user {
	for _, u := range b.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}

	return nil
}

func (b *backend) newUser(w http.ResponseWriter, r *http.Request, defaultRole string) *user {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return nil
	}

	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return nil
	}

	if b.userByEmail(req.Email) != nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return nil
	}

	role := req.Role
	if role == "" {
		role = defaultRole
	}

	u := &user{ID: uuid.NewString(), Email: req.Email, FullName: req.FullName, Role: role, Active: true, password: req.Password}
	b.users[u.ID] = u

	return u
}

func (b *backend) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.newUser(w, r, "user")
	if u == nil {
		return
	}

	b.record("USER_REGISTERED", "user", u.Email)
	b.deliver(u.Email, mail.KindWelcome)

	writeJSON(w, http.StatusOK, u)
}

func (b *backend) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.userByEmail(req.Email)
	if u == nil || u.password != req.Password || !u.Active {
		b.record("LOGIN_FAILED", "auth", req.Email)
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token := uuid.NewString()
	b.tokens[token] = u.ID
	b.record("LOGIN_SUCCESS", "auth", u.Email)

	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "bearer", "user": u})
}

func (b *backend) me(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, u *user) {
	writeJSON(w, http.StatusOK, u)
}

func (b *backend) forgotPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	if b.userByEmail(req.Email) != nil {
		b.deliver(req.Email, mail.KindPasswordReset)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset code has been sent"})
}

func (b *backend) changePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params, u *user) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Current != u.password {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	u.password = req.New
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (b *backend) listContent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page := r.URL.Query().Get("page")

	writeJSON(w, http.StatusOK, filter(b.content, func(c map[string]any) bool {
		return page == "" || c["page"] == page
	}))
}

func (b *backend) createContent(w http.ResponseWriter, r *http.Request, _ httprouter.Params, u *user) {
	c := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&c)

	b.mu.Lock()
	defer b.mu.Unlock()

	c["id"] = uuid.NewString()
	b.content[c["id"].(string)] = c
	b.record("CONTENT_CREATED", "content", u.Email)

	writeJSON(w, http.StatusOK, c)
}

func (b *backend) updateContent(w http.ResponseWriter, r *http.Request, ps httprouter.Params, u *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.content[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}

	_ = json.NewDecoder(r.Body).Decode(&c)
	b.record("CONTENT_UPDATED", "content", u.Email)

	writeJSON(w, http.StatusOK, c)
}

func (b *backend) deleteContent(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, u *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.content[ps.ByName("id")]; !ok {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}

	delete(b.content, ps.ByName("id"))
	b.record("CONTENT_DELETED", "content", u.Email)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Content deleted"})
}

func (b *backend) listProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()

	search := strings.ToLower(r.URL.Query().Get("search"))
	category := r.URL.Query().Get("category")

	writeJSON(w, http.StatusOK, filter(b.products, func(p map[string]any) bool {
		name, _ := p["product_name"].(string)
		return (search == "" || strings.Contains(strings.ToLower(name), search)) &&
			(category == "" || p["category"] == category)
	}))
}

func (b *backend) getProduct(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.products[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (b *backend) createProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params, u *user) {
	p := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&p)

	b.mu.Lock()
	defer b.mu.Unlock()

	p["id"] = uuid.NewString()
	b.products[p["id"].(string)] = p
	b.record("PRODUCT_CREATED", "product", u.Email)

	writeJSON(w, http.StatusOK, p)
}

func (b *backend) updateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params, u *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.products[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	_ = json.NewDecoder(r.Body).Decode(&p)
	b.record("PRODUCT_UPDATED", "product", u.Email)

	writeJSON(w, http.StatusOK, p)
}

func (b *backend) deleteProduct(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, u *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.products[ps.ByName("id")]; !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	delete(b.products, ps.ByName("id"))
	b.record("PRODUCT_DELETED", "product", u.Email)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

var categories = []map[string]string{
	{"name": "Analytical Vials", "slug": "analytical-vials"},
	{"name": "Caps and Septa", "slug": "caps-septa"},
	{"name": "Syringe Filters", "slug": "syringe-filters"},
	{"name": "Membrane Filters", "slug": "membrane-filters"},
	{"name": "Headspace Vials", "slug": "headspace-vials"},
	{"name": "Storage Vials", "slug": "storage-vials"},
	{"name": "Inserts", "slug": "inserts"},
	{"name": "Accessories", "slug": "accessories"},
}

func (b *backend) listCategories(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, categories)
}

func (b *backend) getCategory(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	for _, c := range categories {
		if c["slug"] == ps.ByName("slug") {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}

	writeError(w, http.StatusNotFound, "Category not found")
}

func (b *backend) createQuote(w http.ResponseWriter, r *http.Request, _ httprouter.Params, u *user) {
	q := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&q)

	b.mu.Lock()
	defer b.mu.Unlock()

	q["id"] = uuid.NewString()
	q["user_id"] = u.ID
	q["status"] = "pending"
	b.quotes[q["id"].(string)] = q

	writeJSON(w, http.StatusOK, q)
}

// getQuote also serves /quotes/my, httprouter does not allow a static and a
// wildcard segment at the same position.
func (b *backend) getQuote(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, u *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ps.ByName("id") == "my" {
		writeJSON(w, http.StatusOK, filter(b.quotes, func(q map[string]any) bool {
			return q["user_id"] == u.ID
		}))
		return
	}

	q, ok := b.quotes[ps.ByName("id")]
	if !ok || q["user_id"] != u.ID {
		writeError(w, http.StatusNotFound, "Quote not found")
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (b *backend) listQuotes(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, _ *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	writeJSON(w, http.StatusOK, filter(b.quotes, func(map[string]any) bool { return true }))
}

func (b *backend) setQuoteStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params, u *user) {
	var req struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.quotes[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Quote not found")
		return
	}

	q["status"] = req.Status
	b.record("QUOTE_STATUS_UPDATED", "quote", u.Email)

	writeJSON(w, http.StatusOK, q)
}

func (b *backend) listUsers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, _ *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	users := []*user{}
	for _, u := range b.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	writeJSON(w, http.StatusOK, users)
}

func (b *backend) createUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params, admin *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.newUser(w, r, "user")
	if u == nil {
		return
	}

	b.record("USER_CREATED_BY_ADMIN", "user", admin.Email)

	writeJSON(w, http.StatusOK, u)
}

func (b *backend) deleteUser(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, admin *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := ps.ByName("id")

	if id == admin.ID {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if _, ok := b.users[id]; !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	delete(b.users, id)
	b.record("USER_DELETED", "user", admin.Email)

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (b *backend) setUserStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *user) {
	var req struct {
		Active bool `json:"is_active"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	u.Active = req.Active

	writeJSON(w, http.StatusOK, u)
}

func (b *backend) resetPassword(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *user) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[ps.ByName("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	u.password = req.NewPassword

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset"})
}

func (b *backend) listAuditLogs(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *user) {
	b.mu.Lock()
	defer b.mu.Unlock()

	action := r.URL.Query().Get("action")
	email := r.URL.Query().Get("user_email")

	logs := []auditEntry{}
	for _, e := range b.audit {
		if (action == "" || e.Action == action) && (email == "" || e.UserEmail == email) {
			logs = append(logs, e)
		}
	}

	writeJSON(w, http.StatusOK, logs)
}

func (b *backend) countUsers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.users)
}

func (b *backend) countContent() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.content)
}

func (b *backend) countProducts() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.products)
}

func filter(items map[string]map[string]any, keep func(map[string]any) bool) []map[string]any {
	res := []map[string]any{}

	for _, item := range items {
		if keep(item) {
			res = append(res, item)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i]["id"].(string) < res[j]["id"].(string)
	})

	return res
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
