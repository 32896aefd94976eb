package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridmap/controller"
	"gridmap/logger"
	"gridmap/server/peerlink"
	"gridmap/settings"
	"gridmap/snapshot"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Discard()
}

func newTestServer(t *testing.T) (*httptest.Server, *controller.Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := controller.New(settings.NewMemoryStore(), controller.Auto)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = ctrl.Run(ctx)
	}()

	ts := httptest.NewServer(NewServer("", ctrl, peerlink.DefaultConfig()).Handler())
	t.Cleanup(func() {
		cancel()
		<-stopped
		ts.Close()
	})
	return ts, ctrl
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func getMap(t *testing.T, ts *httptest.Server) snapshot.Message {
	t.Helper()
	resp, err := http.Get(ts.URL + "/map")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg snapshot.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return msg
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOperatorRoutes(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := post(t, ts, "/start", `{"x":1,"y":1}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	msg := getMap(t, ts)
	require.Equal(t, []snapshot.RobotPose{{X: 2, Y: 2, Direction: "right"}}, msg.Robot)

	resp, raw := post(t, ts, "/robot/forward", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var move moveResponse
	require.NoError(t, json.Unmarshal(raw, &move))
	require.True(t, move.Moved)
	require.Equal(t, [2]int{3, 2}, move.To)

	resp, _ = post(t, ts, "/obstacle", `{"x":7,"y":7}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, raw = post(t, ts, "/image", `{"x":7,"y":7,"tag":"b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"accepted":true}`, string(raw))

	msg = getMap(t, ts)
	require.Equal(t, []snapshot.ImageEntry{{ImageX: 8, ImageY: 8, ImageType: "B"}}, msg.Image)

	resp, _ = post(t, ts, "/reset", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	msg = getMap(t, ts)
	require.Empty(t, msg.Robot)
	require.Empty(t, msg.Image)
}

func TestBadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		path string
		body string
	}{
		{"/robot/jump", ""},
		{"/obstacle", `{"x":3}`},
		{"/obstacle", `not json`},
		{"/obstacle", `{"x":15,"y":0}`},
		{"/image", `{"x":1,"y":1,"tag":"0"}`},
		{"/mode/turbo", ""},
		{"/robot/forward", ""},
	}
	for _, tc := range cases {
		resp, raw := post(t, ts, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.path)
		var body errorResponse
		require.NoError(t, json.Unmarshal(raw, &body), tc.path)
		require.NotEmpty(t, body.Error, tc.path)
	}
}

func TestModeAndRefresh(t *testing.T) {
	ts, ctrl := newTestServer(t)

	resp, _ := post(t, ts, "/mode/manual", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Submit(ctx, []byte(`{"status":[{"status":"held"}]}`)))
	require.Equal(t, "None", getMap(t, ts).Status[0].Status)

	resp, raw := post(t, ts, "/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"applied":true}`, string(raw))
	require.Equal(t, "held", getMap(t, ts).Status[0].Status)
}

func TestStoppedController(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := controller.New(settings.NewMemoryStore(), controller.Auto)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = ctrl.Run(ctx)
	}()
	cancel()
	<-stopped

	ts := httptest.NewServer(NewServer("", ctrl, peerlink.DefaultConfig()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/map")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `id="mapgrid"`)
	require.Contains(t, string(raw), `/view/ws`)
}

// dial opens a websocket to path and returns the messages it reads until the test ends.
func dial(t *testing.T, ts *httptest.Server, path string) (*websocket.Conn, <-chan []byte) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			// Reading also answers the server's pings.
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()
	return conn, msgs
}

// awaitMessage returns the first message containing substr.
func awaitMessage(t *testing.T, msgs <-chan []byte, substr string) []byte {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-msgs:
			require.True(t, ok, "link closed while waiting for %q", substr)
			if strings.Contains(string(msg), substr) {
				return msg
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for message", substr)
		}
	}
}

func TestPeerLink(t *testing.T) {
	ts, _ := newTestServer(t)
	conn, msgs := dial(t, ts, "/ws")

	// The latest message is sent on connect.
	awaitMessage(t, msgs, `"status":[{"status":"None"}]`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"status":[{"status":"exploring"}]}`)))
	awaitMessage(t, msgs, `"status":[{"status":"exploring"}]`)

	// A malformed message is dropped and the link stays up.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"map":[{"explored":"zz"}]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"status":[{"status":"recovered"}]}`)))
	awaitMessage(t, msgs, `"status":[{"status":"recovered"}]`)

	// Operator markers are forwarded to the peer.
	resp, _ := post(t, ts, "/start", `{"x":4,"y":5}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	raw := awaitMessage(t, msgs, `"flag"`)
	require.JSONEq(t, `{"flag":"0","x":"04","y":"05"}`, string(raw))
}

func TestViewerLink(t *testing.T) {
	ts, _ := newTestServer(t)
	_, msgs := dial(t, ts, "/view/ws")

	awaitMessage(t, msgs, `"EleId":"status-text"`)

	resp, _ := post(t, ts, "/obstacle", `{"x":0,"y":0}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	awaitMessage(t, msgs, `"EleId":"0-19-cell"`)
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func connStatus(t *testing.T, ctrl *controller.Controller) string {
	t.Helper()
	f, err := ctrl.Snapshot(context.Background())
	require.NoError(t, err)
	return f.ConnStatus
}

func TestSendAndPresets(t *testing.T) {
	ts, ctrl := newTestServer(t)
	require.Equal(t, controller.DefaultConnStatus, connStatus(t, ctrl))

	resp, _ := post(t, ts, "/send", `{"text":"hello"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = post(t, ts, "/send", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, msgs := dial(t, ts, "/ws")
	awaitMessage(t, msgs, `"status":[{"status":"None"}]`)
	require.Eventually(t, func() bool {
		return strings.HasPrefix(connStatus(t, ctrl), "Connected to ")
	}, 3*time.Second, 10*time.Millisecond)

	// Free text reaches the peer as-is.
	resp, _ = post(t, ts, "/send", `{"text":"hello"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "hello", string(awaitMessage(t, msgs, "hello")))

	resp, _ = do(t, http.MethodPut, ts.URL+"/presets/f1", `{"text":"explore"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, raw := do(t, http.MethodGet, ts.URL+"/presets/F1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"name":"F1","text":"explore"}`, string(raw))

	resp, raw = do(t, http.MethodGet, ts.URL+"/presets/F2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"name":"F2","text":""}`, string(raw))

	resp, _ = post(t, ts, "/presets/F1/send", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "explore", string(awaitMessage(t, msgs, "explore")))

	resp, _ = do(t, http.MethodGet, ts.URL+"/presets/F3", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, ts.URL+"/presets/F3", `{"text":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return connStatus(t, ctrl) == controller.DefaultConnStatus
	}, 3*time.Second, 10*time.Millisecond)
}
