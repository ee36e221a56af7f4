package mqttbridge

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/accesslab/keybridge/internal/keybridge/store/memory"
	"github.com/accesslab/keybridge/internal/keybridge/types"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

type captureFanout struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	Channel string
	Event   string
	Payload any
}

func (f *captureFanout) Broadcast(channel, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{Channel: channel, Event: event, Payload: payload})
}

func (f *captureFanout) calls() []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newTestBridge(saver *SaveClient) (*Bridge, *captureFanout, *memory.ReaderStore) {
	fanout := &captureFanout{}
	readers := memory.NewReaderStore()
	b := New(Options{URL: "tcp://localhost:1883", ClientID: "test"}, Dependencies{
		Logger:  log.New(io.Discard, "", 0),
		Fanout:  fanout,
		Readers: readers,
		Saver:   saver,
	})
	return b, fanout, readers
}

func TestHandleScan_BroadcastsCardScanned(t *testing.T) {
	b, fanout, _ := newTestBridge(nil)

	b.handleScan([]byte(`{"uid":"AA11","deviceId":"esp32-entrance"}`))

	calls := fanout.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(calls))
	}
	if calls[0].Channel != rtfanout.NamespaceEvents || calls[0].Event != "cardScanned" {
		t.Errorf("unexpected broadcast %+v", calls[0])
	}
	scan := calls[0].Payload.(types.CardScanMessage)
	if scan.UID != "AA11" || scan.DeviceID != "esp32-entrance" {
		t.Errorf("unexpected payload %+v", scan)
	}
}

func TestHandleScan_MalformedDropped(t *testing.T) {
	b, fanout, _ := newTestBridge(nil)

	b.handleScan([]byte(`{not json`))
	b.handleScan([]byte(`{"uid":"","deviceId":""}`))

	if n := len(fanout.calls()); n != 0 {
		t.Fatalf("expected malformed payloads to be dropped, got %d broadcasts", n)
	}
}

func TestHandleStatus_MarksReaderOnline(t *testing.T) {
	b, _, readers := newTestBridge(nil)

	b.handleStatus([]byte(`{"deviceId":"esp32-entrance","status":"online"}`))

	rec, err := readers.GetReader(context.Background(), "esp32-entrance")
	if err != nil {
		t.Fatalf("expected reader to be registered: %v", err)
	}
	if !rec.Online || rec.LastSeen == nil {
		t.Errorf("expected online with last_seen, got %+v", rec)
	}
}

func TestHandleEnrolled_SavesAndBroadcastsSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotReq types.SaveTagRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Bridge-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"tagId":"AA11","employeeId":7}`))
	}))
	defer ts.Close()

	b, fanout, _ := newTestBridge(NewSaveClient(ts.URL, "bridge-key"))

	b.handleEnrolled([]byte(`{"reader":"mainEntrance","tagId":"AA11","sessionId":"mainEntrance_1","newSecret":"fresh","secretWritten":true}`))

	if gotPath != "/v1/tags/rfid/save" {
		t.Errorf("expected the save endpoint, got %q", gotPath)
	}
	if gotKey != "bridge-key" {
		t.Errorf("expected the bridge key header, got %q", gotKey)
	}
	if gotReq.TagID != "AA11" || gotReq.Reader != "mainEntrance" || !gotReq.SecretWritten {
		t.Errorf("unexpected save request %+v", gotReq)
	}

	calls := fanout.calls()
	if len(calls) != 1 || calls[0].Event != "cardEnrolled" {
		t.Fatalf("expected one cardEnrolled broadcast, got %+v", calls)
	}
	ev := calls[0].Payload.(types.CardEnrolledEvent)
	if !ev.Success || !ev.HasSecret || !ev.SecretWritten {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandleEnrolled_SaveRejectionBroadcastsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"no_enrollment_session","message":"no active enrollment session"}`))
	}))
	defer ts.Close()

	b, fanout, _ := newTestBridge(NewSaveClient(ts.URL, "bridge-key"))

	b.handleEnrolled([]byte(`{"reader":"mainEntrance","tagId":"AA11"}`))

	calls := fanout.calls()
	if len(calls) != 1 || calls[0].Event != "cardEnrolled" {
		t.Fatalf("expected one cardEnrolled broadcast, got %+v", calls)
	}
	ev := calls[0].Payload.(types.CardEnrolledEvent)
	if ev.Success {
		t.Error("expected a failure event")
	}
	if ev.Error == "" {
		t.Error("expected the upstream rejection message on the event")
	}
}

func TestHandleEnrolled_MalformedDropped(t *testing.T) {
	b, fanout, _ := newTestBridge(nil)

	b.handleEnrolled([]byte(`{not json`))
	b.handleEnrolled([]byte(`{"reader":"","tagId":""}`))

	if n := len(fanout.calls()); n != 0 {
		t.Fatalf("expected malformed payloads to be dropped, got %d broadcasts", n)
	}
}

func TestHandleReadersList_UpsertsAndBroadcasts(t *testing.T) {
	b, fanout, readers := newTestBridge(nil)

	b.handleReadersList([]byte(`{"readers":[
		{"deviceId":"esp32-entrance","name":"mainEntrance","location":"Front door","online":true},
		{"deviceId":"esp32-exit","name":"mainExit","online":false},
		{"deviceId":"  ","name":"ignored"}
	]}`))

	list, err := readers.ListReaders(context.Background())
	if err != nil {
		t.Fatalf("ListReaders: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 readers upserted, got %d", len(list))
	}
	if list[0].DeviceID != "esp32-entrance" || !list[0].Online || list[0].LastSeen == nil {
		t.Errorf("unexpected entrance record %+v", list[0])
	}
	if list[1].Online {
		t.Errorf("expected exit reader offline, got %+v", list[1])
	}

	calls := fanout.calls()
	if len(calls) != 1 || calls[0].Channel != rtfanout.NamespaceReadersList || calls[0].Event != "readers_list" {
		t.Fatalf("expected a readers_list broadcast, got %+v", calls)
	}
}

func TestHandleReadersChanged_FlipsStatus(t *testing.T) {
	b, fanout, readers := newTestBridge(nil)

	b.handleReadersChanged([]byte(`{"changes":[{"deviceId":"esp32-entrance","online":true}]}`))

	rec, err := readers.GetReader(context.Background(), "esp32-entrance")
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if !rec.Online {
		t.Errorf("expected reader online, got %+v", rec)
	}

	calls := fanout.calls()
	if len(calls) != 1 || calls[0].Event != "readers_status_changed" {
		t.Fatalf("expected a readers_status_changed broadcast, got %+v", calls)
	}
}

func TestHandleControllerEvent_RoutesScan(t *testing.T) {
	b, fanout, _ := newTestBridge(nil)

	b.HandleControllerEvent("card_scanned", json.RawMessage(`{"uid":"AA11","deviceId":"esp32-entrance"}`))

	calls := fanout.calls()
	if len(calls) != 1 || calls[0].Event != "cardScanned" {
		t.Fatalf("expected a cardScanned broadcast, got %+v", calls)
	}
}

func TestHandleControllerEvent_UnknownEventIgnored(t *testing.T) {
	b, fanout, _ := newTestBridge(nil)

	b.HandleControllerEvent("mystery", json.RawMessage(`{}`))

	if n := len(fanout.calls()); n != 0 {
		t.Fatalf("expected unknown events to be ignored, got %d broadcasts", n)
	}
}
