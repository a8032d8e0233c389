package earthdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

func TestClient_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/tokens" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			t.Error("expected basic auth")
		}
		if user != "alice" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	err := client.Verify(context.Background(), Credentials{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestClient_Verify_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	err := client.Verify(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	if !errors.Is(err, granule.ErrAuth) {
		t.Errorf("Verify() error = %v, want ErrAuth", err)
	}
}

func TestClient_Verify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	err := client.Verify(context.Background(), Credentials{Username: "alice", Password: "s3cret"})
	if !errors.Is(err, granule.ErrNetwork) {
		t.Errorf("Verify() error = %v, want ErrNetwork", err)
	}
}

func TestClient_Verify_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)

	err := client.Verify(context.Background(), Credentials{Username: "alice", Password: "s3cret"})
	if !errors.Is(err, granule.ErrNetwork) {
		t.Errorf("Verify() error = %v, want ErrNetwork", err)
	}
}

func TestClient_Verify_MissingFields(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)

	err := client.Verify(context.Background(), Credentials{})
	if !errors.Is(err, granule.ErrValidation) {
		t.Errorf("Verify() error = %v, want ErrValidation", err)
	}
}
