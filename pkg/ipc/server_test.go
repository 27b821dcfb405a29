package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
)

type recordingNotifier struct {
	mu  sync.Mutex
	ops []string
}

func (n *recordingNotifier) record(op string) {
	n.mu.Lock()
	n.ops = append(n.ops, op)
	n.mu.Unlock()
}

func (n *recordingNotifier) operations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ops...)
}

func (n *recordingNotifier) NotifyCallUpdated(call calls.Call) { n.record("update:" + call.ID) }
func (n *recordingNotifier) NotifyCallsUpdated(snapshot []calls.Call) {
	n.record(fmt.Sprintf("batch:%d", len(snapshot)))
}
func (n *recordingNotifier) NotifyIncomingCall(call calls.Call, textResponses []string) {
	n.record(fmt.Sprintf("incoming:%s:%d", call.ID, len(textResponses)))
}
func (n *recordingNotifier) NotifyCallDisconnected(call calls.Call) {
	n.record("disconnect:" + call.ID)
}
func (n *recordingNotifier) NotifyAudioModeChanged(route audioroute.Route, muted bool) {
	n.record(fmt.Sprintf("mode:%s:%t", route, muted))
}
func (n *recordingNotifier) NotifySupportedAudioModeChanged(mask audioroute.Route) {
	n.record(fmt.Sprintf("mask:%#x", int(mask)))
}
func (n *recordingNotifier) NotifyBringToForeground() { n.record("foreground") }

type stubView struct {
	snapshot []calls.Call
}

func (s stubView) Snapshot() []calls.Call { return s.snapshot }

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	srv := NewServer(cfg, notifier, stubView{snapshot: []calls.Call{{ID: "c1", State: calls.StateActive}}}, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, notifier
}

func postJSON(t *testing.T, url string, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, Config{Version: "test"})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_MetricsGatedByConfig(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	tsPublic, _ := newTestServer(t, Config{PublicMetrics: true})
	resp, err = http.Get(tsPublic.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_CallsSnapshot(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/calls")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot []calls.Call
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c1", snapshot[0].ID)
}

func TestServer_PostEvent(t *testing.T) {
	ts, notifier := newTestServer(t, Config{})

	resp := postJSON(t, ts.URL+"/v1/events",
		`{"type":"call.updated","call":{"id":"c7","state":"active"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"update:c7"}, notifier.operations())
}

func TestServer_PostEventVariants(t *testing.T) {
	ts, notifier := newTestServer(t, Config{})

	frames := []string{
		`{"type":"calls.updated","calls":[{"id":"a"},{"id":"b"}]}`,
		`{"type":"call.incoming","call":{"id":"r1"},"textResponses":["busy"]}`,
		`{"type":"call.disconnected","call":{"id":"a"}}`,
		`{"type":"audio.mode","route":8,"muted":true}`,
		`{"type":"audio.supported","mask":9}`,
		`{"type":"ui.foreground"}`,
	}
	for _, frame := range frames {
		resp := postJSON(t, ts.URL+"/v1/events", frame)
		require.Equal(t, http.StatusAccepted, resp.StatusCode, "frame %s", frame)
	}

	assert.Equal(t, []string{
		"batch:2",
		"incoming:r1:1",
		"disconnect:a",
		"mode:speaker:true",
		"mask:0x9",
		"foreground",
	}, notifier.operations())
}

func TestServer_PostEventRejectsMalformed(t *testing.T) {
	ts, notifier := newTestServer(t, Config{})

	cases := []string{
		`not json`,
		`{"type":"wat"}`,
		`{"type":"call.updated"}`,
		`{"type":"call.updated","call":{"state":"active"}}`,
		`{"type":"audio.mode","route":256}`,
		`{"type":"audio.supported","mask":-1}`,
	}
	for _, payload := range cases {
		resp := postJSON(t, ts.URL+"/v1/events", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload %s", payload)
	}
	assert.Empty(t, notifier.operations())
}

func TestServer_EventStream(t *testing.T) {
	ts, notifier := newTestServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/v1/events/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	frames := []string{
		`{"type":"call.updated","call":{"id":"s1","state":"dialing"}}`,
		`this is not json`,
		`{"type":"wat"}`,
		`{"type":"call.disconnected","call":{"id":"s1"}}`,
	}
	for _, frame := range frames {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	}

	// Bad frames are skipped; the stream stays up and later frames land.
	require.Eventually(t, func() bool {
		return len(notifier.operations()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"update:s1", "disconnect:s1"}, notifier.operations())
}

func TestWireCall_RequiresID(t *testing.T) {
	_, err := wireCall{}.toCall()
	require.Error(t, err)

	call, err := wireCall{ID: "x"}.toCall()
	require.NoError(t, err)
	assert.Equal(t, calls.StateIdle, call.State)
}
