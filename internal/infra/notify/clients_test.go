package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arklim/learnstore/internal/infra/config"
)

func TestBrevoClient_SendEmail(t *testing.T) {
	var received brevoSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("api-key"); got != "brevo-key" {
			t.Errorf("unexpected api-key header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	client, err := NewBrevoClient(config.MailSettings{
		FromAddress: "no-reply@example.com",
		FromName:    "We Will Learn",
		Brevo:       config.BrevoSettings{APIKey: "brevo-key", Endpoint: server.URL},
	}, server.Client())
	if err != nil {
		t.Fatalf("NewBrevoClient returned error: %v", err)
	}

	if err := client.SendEmail(context.Background(), "student@example.com", "Your OTP", "Code: <123456>"); err != nil {
		t.Fatalf("SendEmail returned error: %v", err)
	}

	if received.Sender.Email != "no-reply@example.com" || received.Sender.Name != "We Will Learn" {
		t.Fatalf("unexpected sender %+v", received.Sender)
	}
	if len(received.To) != 1 || received.To[0].Email != "student@example.com" {
		t.Fatalf("unexpected recipients %+v", received.To)
	}
	if received.TextContent != "Code: <123456>" || received.HTMLContent != "<p>Code: &lt;123456&gt;</p>" {
		t.Fatalf("unexpected content text=%q html=%q", received.TextContent, received.HTMLContent)
	}
}

func TestBrevoClient_ClassifiesFailures(t *testing.T) {
	status := http.StatusBadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewBrevoClient(config.MailSettings{
		FromAddress: "no-reply@example.com",
		Brevo:       config.BrevoSettings{APIKey: "k", Endpoint: server.URL},
	}, server.Client())
	if err != nil {
		t.Fatalf("NewBrevoClient returned error: %v", err)
	}

	err = client.SendEmail(context.Background(), "a@example.com", "s", "b")
	if err == nil || !isPermanent(err) {
		t.Fatalf("expected permanent error for 400, got %v", err)
	}

	status = http.StatusServiceUnavailable
	err = client.SendEmail(context.Background(), "a@example.com", "s", "b")
	if err == nil || isPermanent(err) {
		t.Fatalf("expected transient error for 503, got %v", err)
	}
}

func TestNewBrevoClient_RequiresCredentials(t *testing.T) {
	if _, err := NewBrevoClient(config.MailSettings{}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestTwilioClient_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("To") != "+15550001111" || r.PostForm.Get("From") != "+15559998888" || r.PostForm.Get("Body") != "code 123456" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	client, err := NewTwilioClient(config.TwilioSettings{AccountSID: "AC123", AuthToken: "secret", From: "+15559998888"}, server.Client())
	if err != nil {
		t.Fatalf("NewTwilioClient returned error: %v", err)
	}
	client.baseURL = server.URL

	if err := client.SendSMS(context.Background(), "+15550001111", "code 123456"); err != nil {
		t.Fatalf("SendSMS returned error: %v", err)
	}
}
