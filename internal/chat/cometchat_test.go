package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveChatCall(op, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*CometChatClient, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	return NewCometChatClient(CometChatConfig{BaseURL: srv.URL + "/v3", APIKey: "key", Timeout: 2 * time.Second}, nil, obs), obs
}

func TestGetUserRetriesOnceOnServerError(t *testing.T) {
	var hits atomic.Int32
	client, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/users/cust_1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("apikey"))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"uid":"cust_1","name":"Dana","status":"online","metadata":{"email":"dana@x.com","vip":true}}}`))
	})

	user, err := client.GetUser(context.Background(), "cust_1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "Dana", user.Name)
	assert.Equal(t, StatusOnline, user.Status)
	assert.Equal(t, "dana@x.com", user.Email())
	assert.Equal(t, []string{"get_user:error", "get_user:ok"}, obs.outcomes)
}

func TestGetUserGivesUpAfterOneRetry(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetUser(context.Background(), "cust_1")
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())

	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "get_user", tErr.Op)
	assert.Equal(t, http.StatusServiceUnavailable, tErr.Status)
}

func TestGetUserNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"ERR_UID_NOT_FOUND","message":"no such uid"}}`))
	})

	_, err := client.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendMessageIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SendMessage(context.Background(), "vendor_a", "cust_1", "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/messages", r.URL.Path)
		assert.Equal(t, "vendor_a", r.Header.Get("onBehalfOf"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cust_1", body["receiver"])
		assert.Equal(t, "user", body["receiverType"])
		assert.Equal(t, map[string]any{"text": "hello"}, body["data"])

		_, _ = w.Write([]byte(`{"data":{"id":"42","sender":"vendor_a","receiver":"cust_1","type":"text","sentAt":1700000000,"data":{"text":"hello"}}}`))
	})

	msg, err := client.SendMessage(context.Background(), "vendor_a", "cust_1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.SentAt)
}

func TestCreateUserTreatsExistingUIDAsSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"ERR_UID_ALREADY_EXISTS","message":"exists"}}`))
	})

	err := client.CreateUser(context.Background(), User{UID: "vendor_a", Name: "A"})
	assert.NoError(t, err)
}

func TestListUsersFollowsPagination(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("perPage"))
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"data":[{"uid":"a","name":"A"}],"meta":{"pagination":{"total_pages":2,"current_page":1}}}`))
		case "2":
			_, _ = w.Write([]byte(`{"data":[{"uid":"b","name":"B","status":"online"}],"meta":{"pagination":{"total_pages":2,"current_page":2}}}`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, StatusOffline, users[0].Status)
	assert.Equal(t, StatusOnline, users[1].Status)
}

func TestListMessagesMostRecentFirst(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/users/cust_1/messages", r.URL.Path)
		assert.Equal(t, "vendor_a", r.Header.Get("onBehalfOf"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "1700000100", r.URL.Query().Get("sentAt"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"sender":"cust_1","receiver":"vendor_a","sentAt":1700000001,"data":{"text":"first"}},
			{"id":2,"sender":"vendor_a","receiver":"cust_1","sentAt":1700000002,"data":{"text":"second"}}
		]}`))
	})

	msgs, err := client.ListMessages(context.Background(), "vendor_a", "cust_1", MessageQuery{Before: time.Unix(1700000100, 0)})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Text)
	assert.Equal(t, "1", msgs[1].ID)
}

func TestCreateAuthTokenTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := NewCometChatClient(CometChatConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, nil)

	_, err := client.CreateAuthToken(context.Background(), "vendor_a")
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "create_auth_token", tErr.Op)
}

func TestMessageQueryNormalize(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, MessageQuery{}.Normalize().Limit)
	assert.Equal(t, MaxHistoryLimit, MessageQuery{Limit: 500}.Normalize().Limit)
	assert.Equal(t, 10, MessageQuery{Limit: 10}.Normalize().Limit)
}
