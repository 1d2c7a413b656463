package authclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dsqrwym/Maian-sub000/internal/client/authstate"
	"github.com/dsqrwym/Maian-sub000/internal/client/tokenstore"
)

const defaultRefreshTimeout = 30 * time.Second

// RefreshFunc obtains a new access token and stores it.
type RefreshFunc func(ctx context.Context) error

// Interceptor is an http.RoundTripper that attaches the stored access token
// and, on 401, refreshes once per stale token and retries the request once.
// Concurrent 401s for the same token share a single refresh.
type Interceptor struct {
	next    http.RoundTripper
	store   tokenstore.Storage
	refresh RefreshFunc
	sink    authstate.Sink
	timeout time.Duration
	group   singleflight.Group
}

// NewInterceptor wraps next. A nil next uses http.DefaultTransport.
func NewInterceptor(next http.RoundTripper, store tokenstore.Storage, refresh RefreshFunc, sink authstate.Sink) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Interceptor{next: next, store: store, refresh: refresh, sink: sink, timeout: defaultRefreshTimeout}
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(orig *http.Request) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if err := bufferBody(req); err != nil {
		return nil, err
	}
	stale, _ := i.store.GetAccess()
	resp, err := i.next.RoundTrip(withToken(req, stale))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || stale == "" {
		return resp, err
	}

	ch := i.group.DoChan(stale, func() (any, error) {
		return nil, i.refreshFrom(req.Context(), stale)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-req.Context().Done():
		resp.Body.Close()
		return nil, req.Context().Err()
	}
	if res.Err != nil {
		// the original 401 stands
		return resp, nil
	}

	fresh, _ := i.store.GetAccess()
	if fresh == "" {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	retry := withToken(req, fresh)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return i.next.RoundTrip(retry)
}

// refreshFrom runs at most once per stale token at a time. It does not
// inherit cancellation from the request that started it so other waiters
// still get the result.
func (i *Interceptor) refreshFrom(parent context.Context, stale string) error {
	current, _ := i.store.GetAccess()
	if current != stale {
		if current == "" {
			return errSessionEnded
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), i.timeout)
	defer cancel()
	err := i.refresh(ctx)
	if err == nil {
		return nil
	}
	if cerr := i.store.Clear(); cerr != nil {
		log.Printf("authclient: clear tokens: %v", cerr)
	}
	if i.sink != nil {
		i.sink.Report(EventFor(err))
	}
	return err
}

func withToken(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	} else {
		r.Header.Del("Authorization")
	}
	return r
}

// bufferBody makes the body replayable for the retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return &TransportError{Op: "read request body", Err: err}
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

// IsTransport reports whether err came from the transport rather than an
// authorization verdict.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
