package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/vendor-desk/internal/api/http"
	"github.com/spec-kit/vendor-desk/internal/api/http/handlers"
	"github.com/spec-kit/vendor-desk/internal/archive"
	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/chat/chattest"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/observability"
	"github.com/spec-kit/vendor-desk/internal/repository"
	"github.com/spec-kit/vendor-desk/internal/service"
)

const (
	adminEmail    = "admin@desk.test"
	adminPassword = "correct horse battery"
	webhookToken  = "hook-secret"
)

type testServer struct {
	app       *fiber.App
	transport *chattest.FakeTransport
	broker    *chat.MemoryBroker
	streams   context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Name: "vendor-desk-test", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			BcryptCost:            bcrypt.MinCost,
			AdminEmail:            adminEmail,
			AdminPassword:         adminPassword,
		},
		Chat: config.ChatConfig{WebhookToken: webhookToken},
		Sync: config.SyncConfig{MaxUploadBytes: 1024, PasswordLength: 12},
	}
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	vendorRepo := repository.NewMemoryVendorRepository()
	assignmentRepo := repository.NewMemoryAssignmentRepository()
	transport := chattest.NewFakeTransport(
		chat.User{UID: "cust_1", Name: "Casey", Metadata: map[string]string{"email": "casey@example.com"}},
		chat.User{UID: "cust_2", Name: "Robin"},
	)
	broker := chat.NewMemoryBroker(nil)
	dispatcher := events.NewInMemoryDispatcher()

	vendors := service.NewVendorService(cfg, service.VendorDependencies{
		VendorRepo: vendorRepo,
		Dispatcher: dispatcher,
		Archiver:   archive.NopArchiver{},
		Metrics:    metrics,
		Logger:     logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		AssignmentRepo: assignmentRepo,
		VendorRepo:     vendorRepo,
		Transport:      transport,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	authService, err := service.NewAuthService(cfg, service.AuthDependencies{
		VendorRepo: vendorRepo,
		Transport:  transport,
		Logger:     logger,
	})
	require.NoError(t, err)
	conversations := service.NewConversationService(assignments, transport, broker, logger)

	streams, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := fiber.New(fiber.Config{BodyLimit: 4 << 20})
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Vendors:        handlers.NewVendorsHandler(vendors, cfg.Sync.MaxUploadBytes),
		Customers:      handlers.NewCustomersHandler(service.NewCustomerService(transport, vendorRepo)),
		Assignments:    handlers.NewAssignmentsHandler(assignments),
		ActiveVendor:   handlers.NewActiveVendorHandler(service.NewActiveVendorService(repository.NewMemoryActiveVendorStore(), vendorRepo, logger)),
		Conversations:  handlers.NewConversationsHandler(streams, conversations, logger),
		Webhook:        handlers.NewWebhookHandler(conversations, cfg.Chat.WebhookToken, logger),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), vendorRepo),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	return &testServer{app: app, transport: transport, broker: broker, streams: cancel}
}

type request struct {
	method      string
	path        string
	body        string
	token       string
	contentType string
	headers     map[string]string
}

func (s *testServer) do(t *testing.T, r request) (int, []byte) {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != "" {
		ct := r.contentType
		if ct == "" {
			ct = fiber.MIMEApplicationJSON
		}
		req.Header.Set(fiber.HeaderContentType, ct)
	}
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	status, raw := s.do(t, request{
		method: http.MethodPost,
		path:   "/api/admin/login",
		body:   `{"email":"` + adminEmail + `","password":"` + adminPassword + `"}`,
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	return decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, raw).AccessToken
}

func (s *testServer) addVendor(t *testing.T, admin, externalID, email, name, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"externalId": externalID, "email": email, "name": name, "password": password,
	})
	status, raw := s.do(t, request{method: http.MethodPost, path: "/api/admin/add-vendor", body: string(body), token: admin})
	require.Equal(t, http.StatusCreated, status, string(raw))
	return decode[struct {
		Vendor struct {
			UID string `json:"uid"`
		} `json:"vendor"`
	}](t, raw).Vendor.UID
}

func (s *testServer) vendorLogin(t *testing.T, email, password string) (int, []byte) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return s.do(t, request{method: http.MethodPost, path: "/api/vendor/login", body: string(body)})
}

func (s *testServer) vendorToken(t *testing.T, email, password string) string {
	t.Helper()
	status, raw := s.vendorLogin(t, email, password)
	require.Equal(t, http.StatusOK, status, string(raw))
	return decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, raw).AccessToken
}

func (s *testServer) assign(t *testing.T, admin, customerUID, vendorUID string) (int, []byte) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"customerId": customerUID, "vendorId": vendorUID})
	return s.do(t, request{method: http.MethodPost, path: "/api/assign-customer-to-vendor", body: string(body), token: admin})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, raw := s.do(t, request{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "alive")

	status, _ = s.do(t, request{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, status)

	status, raw = s.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "vendor_desk_http_requests_total")
}

func TestUnknownRouteRendersError(t *testing.T) {
	s := newTestServer(t)

	status, raw := s.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, raw).Error.Code)
}

func TestSyncVendorsThenLogin(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)

	type syncResponse struct {
		Added      int `json:"added"`
		Total      int `json:"total"`
		NewVendors []struct {
			UID      string `json:"uid"`
			Name     string `json:"name"`
			Password string `json:"password"`
		} `json:"newVendors"`
	}
	csv := "V1,alice@shop.com,Alice\n"

	status, raw := s.do(t, request{method: http.MethodPost, path: "/api/sync-vendors", body: csv, contentType: "text/csv", token: admin})
	require.Equal(t, http.StatusOK, status, string(raw))
	first := decode[syncResponse](t, raw)
	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 1, first.Total)
	require.Len(t, first.NewVendors, 1)
	assert.Equal(t, "Alice", first.NewVendors[0].Name)
	assert.GreaterOrEqual(t, len(first.NewVendors[0].Password), 12)

	status, raw = s.do(t, request{method: http.MethodPost, path: "/api/sync-vendors", body: csv, contentType: "text/csv", token: admin})
	require.Equal(t, http.StatusOK, status, string(raw))
	second := decode[syncResponse](t, raw)
	assert.Zero(t, second.Added)
	assert.Equal(t, 1, second.Total)
	assert.Empty(t, second.NewVendors)

	status, raw = s.vendorLogin(t, "alice@shop.com", first.NewVendors[0].Password)
	require.Equal(t, http.StatusOK, status, string(raw))
	session := decode[struct {
		Token       string `json:"token"`
		UID         string `json:"uid"`
		Name        string `json:"name"`
		AccessToken string `json:"accessToken"`
	}](t, raw)
	assert.Equal(t, first.NewVendors[0].UID, session.UID)
	assert.Equal(t, "Alice", session.Name)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.AccessToken)
	assert.True(t, s.transport.HasUser(session.UID))
}

func TestVendorLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")

	wrongStatus, wrongBody := s.vendorLogin(t, "alice@shop.com", "not-her-password")
	unknownStatus, unknownBody := s.vendorLogin(t, "nobody@shop.com", "alice-password")

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.JSONEq(t, string(wrongBody), string(unknownBody))
	assert.Equal(t, "invalid credentials", decode[errorBody](t, wrongBody).Error.Message)
}

func TestSyncRejectsOversizedUpload(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)

	big := strings.Repeat("V1,alice@shop.com,Alice\n", 100)
	status, raw := s.do(t, request{method: http.MethodPost, path: "/api/sync-vendors", body: big, contentType: "text/csv", token: admin})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode[errorBody](t, raw).Error.Code)
}

func TestSyncRejectsMalformedCSV(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)

	status, raw := s.do(t, request{
		method: http.MethodPost, path: "/api/sync-vendors",
		body: "V1,alice@shop.com,Alice\nV2,\"bob@shop.com,Bob\n", contentType: "text/csv", token: admin,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, raw).Error.Code)

	status, raw = s.do(t, request{method: http.MethodGet, path: "/api/vendors", token: admin})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"vendors":[]}`, string(raw))
}

func TestAdminRoutesRequireSuperUser(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	vendor := s.vendorToken(t, "alice@shop.com", "alice-password")

	status, _ := s.do(t, request{method: http.MethodGet, path: "/api/vendors"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/vendors", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/vendors", token: vendor})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/customers", token: vendor})
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := s.do(t, request{method: http.MethodGet, path: "/api/customers", token: admin})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "cust_1")
}

func TestAddVendorConflictAndValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "")

	status, raw := s.do(t, request{
		method: http.MethodPost, path: "/api/admin/add-vendor", token: admin,
		body: `{"email":"ALICE@shop.com","name":"Alice Again"}`,
	})
	assert.Equal(t, http.StatusConflict, status, string(raw))

	status, raw = s.do(t, request{
		method: http.MethodPost, path: "/api/admin/add-vendor", token: admin,
		body: `{"email":"bob@shop.com"}`,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "name", decode[errorBody](t, raw).Error.Details["field"])
}

func TestAssignmentLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	alice := s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	bob := s.addVendor(t, admin, "V2", "bob@shop.com", "Bob", "bob-password")

	status, raw := s.assign(t, admin, "cust_1", "vendor_missing")
	assert.Equal(t, http.StatusNotFound, status, string(raw))

	status, raw = s.assign(t, admin, "cust_1", alice)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{}`, string(raw))

	status, raw = s.do(t, request{method: http.MethodGet, path: "/api/customer-vendor-assignments", token: admin})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"assignments":{"cust_1":"`+alice+`"}}`, string(raw))

	aliceToken := s.vendorToken(t, "alice@shop.com", "alice-password")
	status, raw = s.do(t, request{method: http.MethodGet, path: "/api/vendor/" + alice + "/customers", token: aliceToken})
	require.Equal(t, http.StatusOK, status, string(raw))
	customers := decode[struct {
		Customers []struct {
			UID   string `json:"uid"`
			Email string `json:"email"`
		} `json:"customers"`
	}](t, raw).Customers
	require.Len(t, customers, 1)
	assert.Equal(t, "cust_1", customers[0].UID)
	assert.Equal(t, "casey@example.com", customers[0].Email)

	status, _ = s.do(t, request{method: http.MethodGet, path: "/api/vendor/" + bob + "/customers", token: aliceToken})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.assign(t, admin, "cust_1", bob)
	require.Equal(t, http.StatusOK, status)
	status, raw = s.do(t, request{method: http.MethodGet, path: "/api/customer-vendor-assignments", token: admin})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"assignments":{"cust_1":"`+bob+`"}}`, string(raw))

	status, _ = s.do(t, request{method: http.MethodDelete, path: "/api/customer-vendor-assignments/cust_1", token: admin})
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, request{method: http.MethodDelete, path: "/api/customer-vendor-assignments/cust_1", token: admin})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestActiveVendor(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	alice := s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	s.addVendor(t, admin, "V2", "bob@shop.com", "Bob", "bob-password")
	token := s.vendorToken(t, "alice@shop.com", "alice-password")

	status, _ := s.do(t, request{method: http.MethodGet, path: "/api/vendor/active"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, request{method: http.MethodPost, path: "/api/vendor/set-active", token: token, body: `{"uid":"vendor_v2"}`})
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := s.do(t, request{method: http.MethodPost, path: "/api/vendor/set-active", token: token})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = s.do(t, request{method: http.MethodGet, path: "/api/vendor/active"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"uid":"`+alice+`","name":"Alice"}`, string(raw))
}

func TestConversationRequiresAssignment(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	alice := s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	token := s.vendorToken(t, "alice@shop.com", "alice-password")

	path := "/api/vendor/conversations/cust_1/messages"
	status, _ := s.do(t, request{method: http.MethodPost, path: path, token: token, body: `{"text":"hello"}`})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.assign(t, admin, "cust_1", alice)
	require.Equal(t, http.StatusOK, status)

	status, raw := s.do(t, request{method: http.MethodPost, path: path, token: token, body: `{"text":"  hello  "}`})
	require.Equal(t, http.StatusCreated, status, string(raw))
	sent := decode[struct {
		Message chat.Message `json:"message"`
	}](t, raw).Message
	assert.Equal(t, "hello", sent.Text)
	assert.Equal(t, alice, sent.SenderUID)

	status, raw = s.do(t, request{method: http.MethodGet, path: path + "?limit=10", token: token})
	require.Equal(t, http.StatusOK, status, string(raw))
	history := decode[struct {
		Messages []chat.Message `json:"messages"`
	}](t, raw).Messages
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	status, _ = s.do(t, request{method: http.MethodGet, path: path + "?limit=1000", token: token})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebhookAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, request{method: http.MethodPost, path: "/api/webhooks/chat", body: `{}`})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, request{
		method: http.MethodPost, path: "/api/webhooks/chat", body: `{}`,
		headers: map[string]string{handlers.WebhookTokenHeader: "wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, request{
		method: http.MethodPost, path: "/api/webhooks/chat", body: `{"trigger":"after_user_created"}`,
		headers: map[string]string{handlers.WebhookTokenHeader: webhookToken},
	})
	assert.Equal(t, http.StatusAccepted, status)

	status, _ = s.do(t, request{
		method: http.MethodPost, path: "/api/webhooks/chat", body: `not json`,
		headers: map[string]string{handlers.WebhookTokenHeader: webhookToken},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestConversationEventStream(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	alice := s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	token := s.vendorToken(t, "alice@shop.com", "alice-password")
	status, _ := s.assign(t, admin, "cust_1", alice)
	require.Equal(t, http.StatusOK, status)

	type streamResult struct {
		status int
		body   string
	}
	done := make(chan streamResult, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/vendor/conversations/cust_1/events", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := s.app.Test(req, -1)
		if err != nil {
			done <- streamResult{}
			return
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		done <- streamResult{status: resp.StatusCode, body: string(raw)}
	}()

	require.Eventually(t, func() bool { return s.broker.Subscribers(alice, "cust_1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hook := `{"trigger":"after_message","data":{"message":{"id":"42","sender":"cust_1","receiver":"` + alice +
		`","receiverType":"user","category":"message","type":"text","sentAt":1700000000,"data":{"text":"where is my order?"}}}}`
	status, raw := s.do(t, request{
		method: http.MethodPost, path: "/api/webhooks/chat", body: hook,
		headers: map[string]string{handlers.WebhookTokenHeader: webhookToken},
	})
	require.Equal(t, http.StatusAccepted, status, string(raw))

	// give the stream writer a moment to flush before the server side closes it
	time.Sleep(50 * time.Millisecond)
	s.streams()

	select {
	case res := <-done:
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "event: message")
		assert.Contains(t, res.body, "where is my order?")
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not end")
	}
	assert.Eventually(t, func() bool { return s.broker.Subscribers(alice, "cust_1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventStreamRejectsUnassignedCustomer(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	s.addVendor(t, admin, "V1", "alice@shop.com", "Alice", "alice-password")
	token := s.vendorToken(t, "alice@shop.com", "alice-password")

	status, _ := s.do(t, request{method: http.MethodGet, path: "/api/vendor/conversations/cust_2/events", token: token})
	assert.Equal(t, http.StatusForbidden, status)
}
