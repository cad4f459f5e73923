package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/chat/chattest"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			BcryptCost:            bcrypt.MinCost,
			AdminEmail:            "admin@desk.test",
			AdminPassword:         "correct horse battery",
		},
		Sync: config.SyncConfig{MaxUploadBytes: 1 << 16, PasswordLength: 12},
	}
}

type fixture struct {
	cfg         config.Config
	vendorRepo  repository.VendorRepository
	assignRepo  repository.AssignmentRepository
	transport   *chattest.FakeTransport
	dispatcher  events.Dispatcher
	recorder    *eventRecorder
	archiver    *memoryArchiver
	vendors     *VendorService
	assignments *AssignmentService
}

func newFixture(t *testing.T, users ...chat.User) *fixture {
	t.Helper()
	f := &fixture{
		cfg:        testConfig(),
		vendorRepo: repository.NewMemoryVendorRepository(),
		assignRepo: repository.NewMemoryAssignmentRepository(),
		transport:  chattest.NewFakeTransport(users...),
		dispatcher: events.NewInMemoryDispatcher(),
		recorder:   &eventRecorder{},
		archiver:   &memoryArchiver{objects: map[string][]byte{}},
	}
	for _, et := range events.AllEventTypes {
		f.dispatcher.Subscribe(et, f.recorder.handle)
	}
	f.vendors = NewVendorService(f.cfg, VendorDependencies{
		VendorRepo: f.vendorRepo,
		Dispatcher: f.dispatcher,
		Archiver:   f.archiver,
	})
	f.assignments = NewAssignmentService(AssignmentDependencies{
		AssignmentRepo: f.assignRepo,
		VendorRepo:     f.vendorRepo,
		Transport:      f.transport,
		Dispatcher:     f.dispatcher,
	})
	return f
}

func (f *fixture) addVendor(t *testing.T, externalID, email, name, password string) *domain.Vendor {
	t.Helper()
	v, _, err := f.vendors.AddVendor(context.Background(), AddVendorInput{
		ExternalID: externalID, Email: email, Name: name, Password: password,
	})
	require.NoError(t, err)
	return v
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(et events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

type memoryArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *memoryArchiver) Store(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.objects[key] = append([]byte(nil), body...)
	return nil
}

func errorCode(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

func newAssignment(customerUID, vendorUID string) *domain.Assignment {
	return &domain.Assignment{CustomerUID: customerUID, VendorUID: vendorUID}
}
