package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eReuse/DeviceWare/internal/config"
	"github.com/eReuse/DeviceWare/internal/models"
)

type fakeProvisioner struct {
	calls int32
}

func (p *fakeProvisioner) EnsureServiceAccount(config.ServiceAccountConfig) error {
	atomic.AddInt32(&p.calls, 1)
	return nil
}

// fakeSender records delivered events in order
type fakeSender struct {
	posted chan string
}

func (s *fakeSender) GenerateURL(unit *Unit) string {
	return "http://registry.test/" + unit.Original.HID
}

func (s *fakeSender) Post(event TranslatedEvent, url string) {
	s.posted <- event.Device.HID
}

// newInternalAPI fakes the service's own REST surface: login plus the
// embedded-event endpoint the worker reads from.
func newInternalAPI(t *testing.T, events map[uuid.UUID]*models.Event) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "test-token"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id, err := uuid.Parse(parts[2])
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		event, ok := events[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(event)
	}))
}

func newTestForwarder(server *httptest.Server, sender *fakeSender, provisioner *fakeProvisioner) *Forwarder {
	cfg := &config.RegistryConfig{
		Enabled: true,
		Domain:  "http://registry.test",
		Account: config.ServiceAccountConfig{
			Email:    "logger@example.org",
			Password: "secret",
		},
	}
	f := NewForwarder(cfg, server.URL, NewClient(server.URL), provisioner, zap.NewNop())
	f.newSender = func(config.RegistryConfig) EventSender { return sender }
	return f
}

func makeEvent(kind models.EventKind, hid string) *models.Event {
	return &models.Event{
		ID:      uuid.New(),
		Kind:    kind,
		Date:    time.Now().UTC(),
		Devices: []models.Device{testDevice(hid)},
	}
}

func collect(t *testing.T, ch chan string, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case hid := <-ch:
			got = append(got, hid)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
	return got
}

func TestForwarderProcessesInFIFOOrder(t *testing.T) {
	events := map[uuid.UUID]*models.Event{}
	var order []uuid.UUID
	for _, hid := range []string{"hid-1", "hid-2", "hid-3", "hid-4", "hid-5"} {
		event := makeEvent(models.KindAllocate, hid)
		events[event.ID] = event
		order = append(order, event.ID)
	}

	server := newInternalAPI(t, events)
	defer server.Close()
	sender := &fakeSender{posted: make(chan string, 16)}
	forwarder := newTestForwarder(server, sender, &fakeProvisioner{})

	for _, id := range order {
		forwarder.Enqueue(id, "acme")
	}

	got := collect(t, sender.posted, 5)
	assert.Equal(t, []string{"hid-1", "hid-2", "hid-3", "hid-4", "hid-5"}, got)

	// No duplicates trail behind
	select {
	case extra := <-sender.posted:
		t.Fatalf("unexpected extra delivery: %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForwarderStartsExactlyOneWorker(t *testing.T) {
	events := map[uuid.UUID]*models.Event{}
	var ids []uuid.UUID
	for i := 0; i < 20; i++ {
		event := makeEvent(models.KindRegister, "hid")
		events[event.ID] = event
		ids = append(ids, event.ID)
	}

	server := newInternalAPI(t, events)
	defer server.Close()
	sender := &fakeSender{posted: make(chan string, 64)}
	provisioner := &fakeProvisioner{}
	forwarder := newTestForwarder(server, sender, provisioner)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			forwarder.Enqueue(id, "acme")
		}(id)
	}
	wg.Wait()

	collect(t, sender.posted, 20)
	assert.EqualValues(t, 1, atomic.LoadInt32(&provisioner.calls),
		"concurrent enqueues must provision the service account once")
}

func TestForwarderSkipsFailedItemAndContinues(t *testing.T) {
	good := makeEvent(models.KindReceive, "hid-good")
	events := map[uuid.UUID]*models.Event{good.ID: good}

	server := newInternalAPI(t, events)
	defer server.Close()
	sender := &fakeSender{posted: make(chan string, 16)}
	forwarder := newTestForwarder(server, sender, &fakeProvisioner{})

	forwarder.Enqueue(uuid.New(), "acme") // unknown event: fetch fails
	forwarder.Enqueue(good.ID, "acme")

	got := collect(t, sender.posted, 1)
	assert.Equal(t, []string{"hid-good"}, got,
		"a failing item must not block the one behind it")
}

func TestForwarderDisabledIsInert(t *testing.T) {
	server := newInternalAPI(t, nil)
	defer server.Close()
	sender := &fakeSender{posted: make(chan string, 1)}
	provisioner := &fakeProvisioner{}
	forwarder := newTestForwarder(server, sender, provisioner)
	forwarder.cfg.Enabled = false

	forwarder.Enqueue(uuid.New(), "acme")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&provisioner.calls))
	assert.Empty(t, sender.posted)
}

func TestBenignErrorTag(t *testing.T) {
	err := Benign(assert.AnError)
	var benign *BenignError
	require.ErrorAs(t, err, &benign)
	assert.Equal(t, assert.AnError.Error(), err.Error())
	assert.Nil(t, Benign(nil))
}
