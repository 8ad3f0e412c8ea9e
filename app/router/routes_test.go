package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/future-messages/app/handlers"
	"github.com/amirphl/future-messages/app/middleware"
	"github.com/amirphl/future-messages/app/services"
	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/repository"
	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const workerKey = "worker-secret"

type memUserRepo struct {
	mu    sync.Mutex
	users []*models.User
}

func (r *memUserRepo) ByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == user.Phone {
			return repository.ErrDuplicatePhone
		}
	}
	user.ID = uint(len(r.users) + 1)
	cp := *user
	r.users = append(r.users, &cp)
	return nil
}

func (r *memUserRepo) ByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*models.Message
}

func (r *memMessageRepo) ByID(_ context.Context, id uint) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) Save(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uint(len(r.messages) + 1)
	msg.CreatedAt = time.Now().UTC().Add(time.Duration(msg.ID) * time.Millisecond)
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memMessageRepo) ByMessageID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.MessageID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) ListBySender(_ context.Context, senderID uint, limit, offset int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.SenderID == senderID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.MessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !models.CanTransition(from, to) {
		return repository.ErrStatusConflict
	}
	for _, m := range r.messages {
		if m.MessageID == id && m.Status == from {
			m.Status = to
			return nil
		}
	}
	return repository.ErrStatusConflict
}

func (r *memMessageRepo) RecordEnqueueFailure(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.MessageID == id {
			m.EnqueueAttempts++
			m.LastError = &reason
		}
	}
	return nil
}

func (r *memMessageRepo) ListStuckProcessing(context.Context, time.Time, int, int) ([]*models.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) CountExhausted(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []services.DeliveryJob
}

func (p *recordingPublisher) Name() string { return "memory" }

func (p *recordingPublisher) Publish(_ context.Context, job services.DeliveryJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testServer struct {
	router    Router
	publisher *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	tokens, err := services.NewTokenService(time.Hour, "future-messages", "future-messages-api", false, "", "", "test-secret")
	require.NoError(t, err)
	return newTestServerWith(t, services.NewJWTStrategy(tokens))
}

func newSessionTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, services.NewSessionStrategy(services.NewMemorySessionStore(), time.Hour))
}

func newTestServerWith(t *testing.T, strategy services.AuthStrategy) *testServer {
	t.Helper()

	authFlow, err := businessflow.NewAuthFlow(&memUserRepo{}, strategy, bcrypt.MinCost)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	messageFlow := businessflow.NewMessageFlow(&memMessageRepo{}, businessflow.NewMessageValidator(), publisher, time.Second)

	r := NewFiberRouter(Config{
		AuthHandler:    handlers.NewAuthHandler(authFlow, strategy.Transport(), handlers.CookieOptions{}),
		MessageHandler: handlers.NewMessageHandler(messageFlow),
		HealthHandler:  handlers.NewHealthHandler(nil, nil, "test"),
		AuthMiddleware: middleware.NewAuthMiddleware(strategy),
		WorkerAPIKeys:  []string{workerKey},
		AllowedOrigins: []string{"http://localhost:3000"},
		EnableDocs:     true,
		EnableMetrics:  true,
	})
	r.SetupRoutes()

	return &testServer{router: r, publisher: publisher}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	status, env, _ := s.send(t, method, path, "application/json", body, headers)
	return status, env
}

// send issues a request with the given body content type and also returns
// the cookies the response sets
func (s *testServer) send(t *testing.T, method, path, contentType, body string, headers map[string]string) (int, envelope, []*http.Cookie) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.router.GetApp().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, resp.Cookies()
}

func sessionCookie(cookies []*http.Cookie) *http.Cookie {
	for _, c := range cookies {
		if c.Name == utils.SessionCookieName {
			return c
		}
	}
	return nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *testServer) registerAndLogin(t *testing.T, phone string) string {
	t.Helper()

	status, _ := s.do(t, http.MethodPost, "/api/v1/register",
		`{"first_name":"Ana","last_name":"Lima","phone":"`+phone+`","password":"secret123"}`, nil)
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, http.MethodPost, "/api/v1/login",
		`{"phone":"`+phone+`","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, status)

	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "bearer", login.TokenType)
	return login.AccessToken
}

func TestScheduleMessageEndToEnd(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "11999990000")

	status, env := s.do(t, http.MethodPost, "/api/v1/messages",
		`{"recipient_phone":"(11) 98888-7777","message":"Happy holidays","event_date":"2025-12-25","reminder_days":5}`,
		bearer(token))
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		MessageID      string `json:"message_id"`
		RecipientPhone string `json:"recipient_phone"`
		DueAt          string `json:"due_at"`
		Status         string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "2025-12-20T00:00:00Z", created.DueAt)
	assert.Equal(t, "Queued", created.Status)
	assert.Equal(t, "11988887777", created.RecipientPhone)

	require.Len(t, s.publisher.jobs, 1)
	assert.Equal(t, created.MessageID, s.publisher.jobs[0].MessageID)

	status, env = s.do(t, http.MethodGet, "/api/v1/messages", "", bearer(token))
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Messages []struct {
			MessageID string `json:"message_id"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Messages, 1)
	assert.Equal(t, created.MessageID, list.Messages[0].MessageID)

	status, env = s.do(t, http.MethodPost, "/api/v1/internal/messages/"+created.MessageID+"/status",
		`{"status":"sent"}`, map[string]string{"X-API-Key": workerKey})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	var reported struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reported))
	assert.Equal(t, "Sent", reported.Status)

	// Same outcome again is accepted, a different one conflicts
	status, _ = s.do(t, http.MethodPost, "/api/v1/internal/messages/"+created.MessageID+"/status",
		`{"status":"Sent"}`, map[string]string{"X-API-Key": workerKey})
	assert.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodPost, "/api/v1/internal/messages/"+created.MessageID+"/status",
		`{"status":"failed"}`, map[string]string{"X-API-Key": workerKey})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STATUS_CONFLICT", env.Error.Code)
}

func TestRegister_DuplicatePhone(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "11999990000")

	status, env := s.do(t, http.MethodPost, "/api/v1/register",
		`{"first_name":"Bea","last_name":"Reis","phone":"(11) 99999-0000","password":"another1"}`, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PHONE_ALREADY_REGISTERED", env.Error.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "11999990000")

	status, env := s.do(t, http.MethodPost, "/api/v1/login",
		`{"phone":"11999990000","password":"wrong-one"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/login",
		`{"phone":"11000000000","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}

func TestProtectedRoutes_RequireCredential(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/messages",
		`{"recipient_phone":"11988887777","message":"hi","event_date":"2025-12-25","reminder_days":0}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_CREDENTIAL", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/messages", "", bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIAL", env.Error.Code)

	status, _ = s.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateMessage_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "11999990000")

	tests := []struct {
		name string
		body string
	}{
		{"bad phone", `{"recipient_phone":"123","message":"hi","event_date":"2025-12-25","reminder_days":1}`},
		{"blank message", `{"recipient_phone":"11988887777","message":"   ","event_date":"2025-12-25","reminder_days":1}`},
		{"negative reminder", `{"recipient_phone":"11988887777","message":"hi","event_date":"2025-12-25","reminder_days":-1}`},
		{"bad date", `{"recipient_phone":"11988887777","message":"hi","event_date":"25/12/2025","reminder_days":1}`},
		{"missing reminder", `{"recipient_phone":"11988887777","message":"hi","event_date":"2025-12-25"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, http.MethodPost, "/api/v1/messages", tt.body, bearer(token))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}
	assert.Empty(t, s.publisher.jobs)
}

func TestListMessages_OnlyOwnMessages(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerAndLogin(t, "11999990000")
	bob := s.registerAndLogin(t, "11999990001")

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodPost, "/api/v1/messages",
			`{"recipient_phone":"11988887777","message":"from alice","event_date":"2025-12-25","reminder_days":0}`, bearer(alice))
		require.Equal(t, http.StatusCreated, status)
	}

	status, env := s.do(t, http.MethodGet, "/api/v1/messages", "", bearer(bob))
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Messages)

	status, env = s.do(t, http.MethodGet, "/api/v1/messages?limit=abc", "", bearer(alice))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestReportStatus_APIKeyAndLookup(t *testing.T) {
	s := newTestServer(t)
	path := "/api/v1/internal/messages/" + uuid.NewString() + "/status"

	status, env := s.do(t, http.MethodPost, path, `{"status":"sent"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_API_KEY", env.Error.Code)

	status, env = s.do(t, http.MethodPost, path, `{"status":"sent"}`, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_API_KEY", env.Error.Code)

	status, env = s.do(t, http.MethodPost, path, `{"status":"sent"}`, map[string]string{"X-API-Key": workerKey})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MESSAGE_NOT_FOUND", env.Error.Code)

	status, env = s.do(t, http.MethodPost, path, `{"status":"delivered"}`, map[string]string{"X-API-Key": workerKey})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestRegister_PasswordByteLimit(t *testing.T) {
	// 40 characters, 80 bytes
	password := strings.Repeat("é", 40)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
	}{
		{
			name:        "json",
			path:        "/api/v1/register",
			contentType: "application/json",
			body:        `{"first_name":"Ana","phone":"11999990000","password":"` + password + `"}`,
		},
		{
			name:        "form",
			path:        "/register",
			contentType: "application/x-www-form-urlencoded",
			body: url.Values{
				"first_name": {"Ana"},
				"phone":      {"11999990000"},
				"password":   {password},
			}.Encode(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			status, env, _ := s.send(t, http.MethodPost, tt.path, tt.contentType, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Contains(t, strings.ToLower(string(env.Error.Details)), "password")
		})
	}
}

func TestSessionCookieFlow(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		contentType string
		encode      func(v url.Values) string
	}{
		{
			name:        "form on root aliases",
			prefix:      "",
			contentType: "application/x-www-form-urlencoded",
			encode:      func(v url.Values) string { return v.Encode() },
		},
		{
			name:        "json under api prefix",
			prefix:      "/api/v1",
			contentType: "application/json",
			encode: func(v url.Values) string {
				flat := make(map[string]string, len(v))
				for k := range v {
					flat[k] = v.Get(k)
				}
				raw, _ := json.Marshal(flat)
				return string(raw)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSessionTestServer(t)

			status, _, _ := s.send(t, http.MethodPost, tt.prefix+"/register", tt.contentType, tt.encode(url.Values{
				"first_name": {"Ana"},
				"last_name":  {"Lima"},
				"phone":      {"(11) 99999-0000"},
				"password":   {"secret123"},
			}), nil)
			require.Equal(t, http.StatusCreated, status)

			status, env, cookies := s.send(t, http.MethodPost, tt.prefix+"/login", tt.contentType, tt.encode(url.Values{
				"phone":    {"11999990000"},
				"password": {"secret123"},
			}), nil)
			require.Equal(t, http.StatusOK, status)
			assert.True(t, env.Success)

			session := sessionCookie(cookies)
			require.NotNil(t, session)
			require.NotEmpty(t, session.Value)
			assert.True(t, session.HttpOnly)
			withCookie := map[string]string{"Cookie": utils.SessionCookieName + "=" + session.Value}

			status, env = s.do(t, http.MethodPost, tt.prefix+"/messages",
				`{"recipient_phone":"11988887777","message":"Happy holidays","event_date":"2025-12-25","reminder_days":1}`,
				withCookie)
			require.Equal(t, http.StatusCreated, status)

			status, env = s.do(t, http.MethodGet, tt.prefix+"/messages", "", withCookie)
			require.Equal(t, http.StatusOK, status)
			var list struct {
				Messages []json.RawMessage `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &list))
			assert.Len(t, list.Messages, 1)

			status, _, cookies = s.send(t, http.MethodPost, tt.prefix+"/logout", "", "", withCookie)
			require.Equal(t, http.StatusOK, status)
			cleared := sessionCookie(cookies)
			require.NotNil(t, cleared)
			assert.Empty(t, cleared.Value)

			status, env = s.do(t, http.MethodGet, tt.prefix+"/messages", "", withCookie)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "INVALID_CREDENTIAL", env.Error.Code)

			status, _ = s.do(t, http.MethodGet, tt.prefix+"/messages", "", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestMeAndRootAliases(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "11999990000")

	status, env := s.do(t, http.MethodGet, "/me", "", bearer(token))
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Phone     string `json:"phone"`
		FirstName string `json:"first_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "11999990000", me.Phone)
	assert.Equal(t, "Ana", me.FirstName)
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = s.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	resp, err := s.router.GetApp().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err = s.router.GetApp().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
