package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/victorivanov/huddle/internal/models"
)

type sentResponse struct {
	MessageID int64 `json:"message_id,string"`
}

func (s *testServer) sendMessage(t *testing.T, userID int64, path, text string) int64 {
	t.Helper()
	rec := s.do(t, userID, http.MethodPost, path, fmt.Sprintf(`{"message":%q}`, text))
	expectStatus(t, rec, http.StatusCreated)
	return decode[sentResponse](t, rec).MessageID
}

func TestSendMessage_Success(t *testing.T) {
	s := newTestServer(t, nil, 0)

	id := s.sendMessage(t, testOwnerID, "/api/v1/channels/500/messages", "hello team")
	if id == 0 {
		t.Fatal("expected a message id")
	}

	rec := s.do(t, testMemberID, http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", id), "")
	expectStatus(t, rec, http.StatusOK)
	view := decode[models.MessageView](t, rec)
	if view.Body != "hello team" || view.AuthorID != testOwnerID {
		t.Errorf("unexpected view: %+v", view)
	}
	if view.SentAt != testNow.Unix() {
		t.Errorf("time_sent = %d, want %d", view.SentAt, testNow.Unix())
	}
}

func TestSendMessage_Direct(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.sendMessage(t, testMemberID, "/api/v1/dms/600/messages", "hi")

	rec := s.do(t, testOwnerID, http.MethodGet, "/api/v1/dms/600/messages?start=0", "")
	expectStatus(t, rec, http.StatusOK)
	page := decode[models.Page](t, rec)
	if len(page.Messages) != 1 || page.End != -1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	s := newTestServer(t, nil, 0)

	tests := []struct {
		name   string
		userID int64
		path   string
		body   string
		status int
		code   string
	}{
		{"non-member", testOtherID, "/api/v1/channels/500/messages", `{"message":"hi"}`, http.StatusForbidden, "NOT_A_MEMBER"},
		{"unknown channel", testOwnerID, "/api/v1/channels/999/messages", `{"message":"hi"}`, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
		{"unknown kind", testOwnerID, "/api/v1/groups/500/messages", `{"message":"hi"}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad id", testOwnerID, "/api/v1/channels/abc/messages", `{"message":"hi"}`, http.StatusBadRequest, "INVALID_ID"},
		{"empty body", testOwnerID, "/api/v1/channels/500/messages", `{"message":""}`, http.StatusBadRequest, "INVALID_CONTENT"},
		{"too long", testOwnerID, "/api/v1/channels/500/messages", fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", 1001)), http.StatusBadRequest, "CONTENT_TOO_LONG"},
		{"malformed json", testOwnerID, "/api/v1/channels/500/messages", `{"message":`, http.StatusBadRequest, "INVALID_BODY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.userID, http.MethodPost, tt.path, tt.body)
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestSendMessage_Unauthenticated(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, 0, http.MethodPost, "/api/v1/channels/500/messages", `{"message":"hi"}`)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestGetMessages_Paging(t *testing.T) {
	s := newTestServer(t, nil, 0)
	for i := range 51 {
		s.sendMessage(t, testOwnerID, "/api/v1/channels/500/messages", fmt.Sprintf("m%d", i))
	}

	rec := s.do(t, testMemberID, http.MethodGet, "/api/v1/channels/500/messages", "")
	expectStatus(t, rec, http.StatusOK)
	page := decode[models.Page](t, rec)
	if len(page.Messages) != 50 || page.Start != 0 || page.End != 50 {
		t.Fatalf("first page: got %d messages, start %d, end %d", len(page.Messages), page.Start, page.End)
	}
	if page.Messages[0].Body != "m50" {
		t.Errorf("newest first: got %q", page.Messages[0].Body)
	}

	rec = s.do(t, testMemberID, http.MethodGet, "/api/v1/channels/500/messages?start=50", "")
	expectStatus(t, rec, http.StatusOK)
	page = decode[models.Page](t, rec)
	if len(page.Messages) != 1 || page.End != -1 {
		t.Fatalf("second page: got %d messages, end %d", len(page.Messages), page.End)
	}

	rec = s.do(t, testMemberID, http.MethodGet, "/api/v1/channels/500/messages?start=52", "")
	expectError(t, rec, http.StatusRequestedRangeNotSatisfiable, "START_OUT_OF_RANGE")

	rec = s.do(t, testMemberID, http.MethodGet, "/api/v1/channels/500/messages?start=x", "")
	expectError(t, rec, http.StatusBadRequest, "INVALID_START")
}

func TestEditMessage(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "draft")
	path := fmt.Sprintf("/api/v1/messages/%d", id)

	rec := s.do(t, testMemberID, http.MethodPatch, path, `{"message":"final"}`)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, testOwnerID, http.MethodGet, path, "")
	if got := decode[models.MessageView](t, rec).Body; got != "final" {
		t.Errorf("body = %q, want final", got)
	}

	// The channel owner may edit anyone's message; another member may not.
	rec = s.do(t, testOwnerID, http.MethodPatch, path, `{"message":"moderated"}`)
	expectStatus(t, rec, http.StatusOK)

	own := s.sendMessage(t, testOwnerID, "/api/v1/channels/500/messages", "owner's")
	rec = s.do(t, testMemberID, http.MethodPatch, fmt.Sprintf("/api/v1/messages/%d", own), `{"message":"nope"}`)
	expectError(t, rec, http.StatusForbidden, "NOT_AUTHORIZED")
}

func TestEditMessage_EmptyRemoves(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "oops")
	path := fmt.Sprintf("/api/v1/messages/%d", id)

	rec := s.do(t, testMemberID, http.MethodPatch, path, `{"message":""}`)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, testMemberID, http.MethodGet, path, "")
	expectError(t, rec, http.StatusNotFound, "MESSAGE_NOT_FOUND")
}

func TestDeleteMessage(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "bye")
	path := fmt.Sprintf("/api/v1/messages/%d", id)

	rec := s.do(t, testOtherID, http.MethodDelete, path, "")
	expectError(t, rec, http.StatusNotFound, "MESSAGE_NOT_FOUND")

	rec = s.do(t, testMemberID, http.MethodDelete, path, "")
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(t, testMemberID, http.MethodDelete, path, "")
	expectError(t, rec, http.StatusNotFound, "MESSAGE_NOT_FOUND")

	rec = s.do(t, testMemberID, http.MethodDelete, "/api/v1/messages/nope", "")
	expectError(t, rec, http.StatusBadRequest, "INVALID_ID")
}

func TestScheduleMessage(t *testing.T) {
	s := newTestServer(t, nil, 0)
	fireAt := testNow.Add(10 * time.Minute)

	rec := s.do(t, testOwnerID, http.MethodPost, "/api/v1/channels/500/messages/scheduled",
		fmt.Sprintf(`{"message":"later","time_sent":%d}`, fireAt.Unix()))
	expectStatus(t, rec, http.StatusAccepted)
	id := decode[sentResponse](t, rec).MessageID
	path := fmt.Sprintf("/api/v1/messages/%d", id)

	rec = s.do(t, testOwnerID, http.MethodGet, path, "")
	expectError(t, rec, http.StatusNotFound, "MESSAGE_NOT_FOUND")

	s.clock.Advance(10 * time.Minute)

	rec = s.do(t, testOwnerID, http.MethodGet, path, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.MessageView](t, rec).SentAt; got != fireAt.Unix() {
		t.Errorf("time_sent = %d, want %d", got, fireAt.Unix())
	}
}

func TestScheduleMessage_InPast(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, testOwnerID, http.MethodPost, "/api/v1/channels/500/messages/scheduled",
		fmt.Sprintf(`{"message":"late","time_sent":%d}`, testNow.Add(-time.Second).Unix()))
	expectError(t, rec, http.StatusBadRequest, "SEND_IN_PAST")
}

func TestShareMessage(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "original")
	path := fmt.Sprintf("/api/v1/messages/%d/share", id)

	rec := s.do(t, testOwnerID, http.MethodPost, path, `{"message":"look","dm_id":600}`)
	expectStatus(t, rec, http.StatusCreated)
	shared := decode[struct {
		ID int64 `json:"shared_message_id,string"`
	}](t, rec).ID

	rec = s.do(t, testMemberID, http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", shared), "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.MessageView](t, rec).Body; got != "look\n\n> original" {
		t.Errorf("shared body = %q", got)
	}
}

func TestShareMessage_InvalidTarget(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "original")
	path := fmt.Sprintf("/api/v1/messages/%d/share", id)

	for _, body := range []string{`{"message":""}`, `{"channel_id":500,"dm_id":600}`} {
		rec := s.do(t, testOwnerID, http.MethodPost, path, body)
		expectError(t, rec, http.StatusBadRequest, "INVALID_TARGET")
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.sendMessage(t, testOwnerID, "/api/v1/channels/500/messages", "Deploy at noon")
	s.sendMessage(t, testOwnerID, "/api/v1/dms/600/messages", "deploy notes")
	s.sendMessage(t, testOwnerID, "/api/v1/channels/500/messages", "lunch?")

	rec := s.do(t, testMemberID, http.MethodGet, "/api/v1/search?query=DEPLOY", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Messages []models.MessageView `json:"messages"`
	}](t, rec).Messages
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}

	rec = s.do(t, testOtherID, http.MethodGet, "/api/v1/search?query=deploy", "")
	expectStatus(t, rec, http.StatusOK)
	if n := len(decode[struct {
		Messages []models.MessageView `json:"messages"`
	}](t, rec).Messages); n != 0 {
		t.Errorf("outsider saw %d hits", n)
	}

	rec = s.do(t, testMemberID, http.MethodGet, "/api/v1/search", "")
	expectError(t, rec, http.StatusBadRequest, "INVALID_QUERY")
}

func TestPurgeMessages(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.sendMessage(t, testMemberID, "/api/v1/channels/500/messages", "old")

	rec := s.do(t, testOwnerID, http.MethodDelete, "/api/v1/channels/500/messages", "")
	expectError(t, rec, http.StatusForbidden, "NOT_AUTHORIZED")

	s.dir.AddUser(models.User{ID: testOtherID, Handle: "other", Elevated: true})
	rec = s.do(t, testOtherID, http.MethodDelete, "/api/v1/channels/500/messages", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]int](t, rec)["removed"]; got != 1 {
		t.Errorf("removed = %d, want 1", got)
	}

	rec = s.do(t, testMemberID, http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", id), "")
	expectError(t, rec, http.StatusNotFound, "MESSAGE_NOT_FOUND")
}
