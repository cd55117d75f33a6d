package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NivasCh/chatrelay-backend/internal/events"
	"github.com/NivasCh/chatrelay-backend/internal/models"
	"github.com/NivasCh/chatrelay-backend/internal/services"
	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

type stubSender struct {
	sid string
	err error
}

func (s *stubSender) SendWhatsAppMessage(to, body string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.sid, nil
}

func (s *stubSender) OperatorNumber() string { return "+15550001111" }

type fixture struct {
	app   *fiber.App
	store *storage.MemoryStore
	evs   <-chan *events.Event
}

func newFixture(t *testing.T, sender services.MessageSender) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	bus := events.NewBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	// Publish blocks until the subscriber acks; drain eagerly the way
	// the realtime hub does so webhook handlers never stall mid-request.
	evs := make(chan *events.Event, 16)
	go func() {
		for msg := range msgs {
			msg.Ack()
			if ev, err := events.Decode(msg); err == nil {
				evs <- ev
			}
		}
	}()

	dispatcher := services.NewDispatcher(store, sender, nil)
	router := services.NewInboundRouter(store, bus, nil)

	chatHandler := NewChatHandler(store, dispatcher, nil)
	webhookHandler := NewWebhookHandler(router)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/sessions", chatHandler.CreateSession)
	api.Post("/messages", chatHandler.SendMessage)
	api.Get("/sessions/:id/messages", chatHandler.GetMessages)
	app.Post("/webhook/whatsapp", webhookHandler.HandleWebhook)

	return &fixture{app: app, store: store, evs: evs}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestVisitorReplyRoundTrip(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	// Visitor opens a session.
	resp := f.postJSON(t, "/api/sessions", fiber.Map{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := decodeBody(t, resp)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// Visitor sends a message; the provider SID comes back.
	resp = f.postJSON(t, "/api/messages", fiber.Map{"session_id": sessionID, "text": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SM001", body["message_sid"])

	// Operator replies in thread; the webhook is acknowledged.
	resp = f.postForm(t, "/webhook/whatsapp", url.Values{
		"MessageSid":                {"IN001"},
		"From":                      {"whatsapp:+15550001111"},
		"Body":                      {"hi back"},
		"OriginalRepliedMessageSid": {"SM001"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The reply landed in the originating session...
	resp = httptestGet(t, f.app, "/api/sessions/"+sessionID+"/messages")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	transcript := decodeBody(t, resp)
	messages := transcript["messages"].([]any)
	require.Len(t, messages, 2)
	reply := messages[1].(map[string]any)
	assert.Equal(t, string(models.DirectionToVisitor), reply["direction"])
	assert.Equal(t, "hi back", reply["text"])

	// ...and was published for realtime delivery.
	ev := receiveBusEvent(t, f.evs)
	assert.Equal(t, events.TypeReply, ev.Type)
	assert.Equal(t, sessionID, ev.SessionID)
}

func TestStatusCallbackBeforeReply(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postJSON(t, "/api/sessions", fiber.Map{})
	sessionID := decodeBody(t, resp)["session_id"].(string)
	f.postJSON(t, "/api/messages", fiber.Map{"session_id": sessionID, "text": "hello"})

	resp = f.postForm(t, "/webhook/whatsapp", url.Values{
		"MessageSid":    {"SM001"},
		"MessageStatus": {"delivered"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, models.DeliveryDelivered, got.Messages[0].DeliveryStatus)
}

func TestWebhookUnknownContextStillAccepted(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postForm(t, "/webhook/whatsapp", url.Values{
		"MessageSid":                {"IN001"},
		"From":                      {"whatsapp:+15550001111"},
		"Body":                      {"hi"},
		"OriginalRepliedMessageSid": {"unknown-id"},
	})
	// The provider must always see success for a well-formed request.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookReplyWithoutContextAccepted(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postJSON(t, "/api/sessions", fiber.Map{})
	sessionID := decodeBody(t, resp)["session_id"].(string)
	f.postJSON(t, "/api/messages", fiber.Map{"session_id": sessionID, "text": "hello"})

	resp = f.postForm(t, "/webhook/whatsapp", url.Values{
		"MessageSid": {"IN001"},
		"From":       {"whatsapp:+15550001111"},
		"Body":       {"free-standing message"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No session was mutated.
	got, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestWebhookReplyWithInboundStatusField(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postJSON(t, "/api/sessions", fiber.Map{})
	sessionID := decodeBody(t, resp)["session_id"].(string)
	f.postJSON(t, "/api/messages", fiber.Map{"session_id": sessionID, "text": "hello"})

	// Inbound messages can carry a MessageStatus like "received" next to
	// the Body; that must not shadow the reply itself.
	resp = f.postForm(t, "/webhook/whatsapp", url.Values{
		"MessageSid":                {"IN001"},
		"From":                      {"whatsapp:+15550001111"},
		"Body":                      {"hi back"},
		"MessageStatus":             {"received"},
		"OriginalRepliedMessageSid": {"SM001"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi back", got.Messages[1].Text)
	assert.Equal(t, models.DirectionToVisitor, got.Messages[1].Direction)
	// The outbound message's delivery status is untouched.
	assert.Equal(t, models.DeliverySent, got.Messages[0].DeliveryStatus)

	ev := receiveBusEvent(t, f.evs)
	assert.Equal(t, events.TypeReply, ev.Type)
}

func TestSendMessageUnknownSession(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postJSON(t, "/api/messages", fiber.Map{"session_id": "nope", "text": "hello"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessageDispatchFailure(t *testing.T) {
	f := newFixture(t, &stubSender{err: assert.AnError})

	resp := f.postJSON(t, "/api/sessions", fiber.Map{})
	sessionID := decodeBody(t, resp)["session_id"].(string)

	resp = f.postJSON(t, "/api/messages", fiber.Map{"session_id": sessionID, "text": "hello"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Failed dispatches leave no trace in the transcript.
	got, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestSendMessageMissingFields(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := f.postJSON(t, "/api/messages", fiber.Map{"session_id": "", "text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMessagesUnknownSession(t *testing.T) {
	f := newFixture(t, &stubSender{sid: "SM001"})

	resp := httptestGet(t, f.app, "/api/sessions/nope/messages")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func httptestGet(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func receiveBusEvent(t *testing.T, evs <-chan *events.Event) *events.Event {
	t.Helper()
	select {
	case ev := <-evs:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus event")
		return nil
	}
}
