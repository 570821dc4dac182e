// internal/source/googlefit/auth.go
package googlefit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// callbackTimeout bounds how long the local receiver waits for the
// browser redirect before giving up.
const callbackTimeout = 5 * time.Minute

// RedirectURI returns the local receiver address registered with the
// OAuth client.
func RedirectURI(port int) string {
	return fmt.Sprintf("http://localhost:%d/callback", port)
}

// AuthURL builds the browser authorization URL and returns it together
// with the state nonce the callback must echo back.
func AuthURL(clientID string, port int) (string, string) {
	state := uuid.New().String()
	q := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {RedirectURI(port)},
		"response_type": {"code"},
		"scope":         {sleepScope},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {state},
	}
	return defaultAuthURL + "?" + q.Encode(), state
}

// WaitForCallback runs a local HTTP receiver that accepts exactly one
// (code, state) pair, validates state against the value issued at
// authorization start, and returns the code. On timeout without a
// callback it returns empty values rather than hanging; an invalid state
// is an authentication failure.
func WaitForCallback(ctx context.Context, port int, wantState string) (string, error) {
	type callback struct {
		code  string
		state string
	}

	results := make(chan callback, 1)
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		cb := callback{
			code:  r.URL.Query().Get("code"),
			state: r.URL.Query().Get("state"),
		}
		delivered := false
		once.Do(func() {
			results <- cb
			delivered = true
		})
		if !delivered {
			http.Error(w, "authorization already completed", http.StatusConflict)
			return
		}
		if cb.state != wantState {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization received. You can close this window.")
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return "", fmt.Errorf("start callback receiver: %w", err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	select {
	case cb := <-results:
		if cb.state != wantState {
			return "", fmt.Errorf("%w: state mismatch in authorization callback", ErrAuthFailed)
		}
		return cb.code, nil
	case <-time.After(callbackTimeout):
		// Resolve with empty values instead of hanging indefinitely.
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
