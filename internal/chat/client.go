package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/snapie/chat/internal/chaterr"
	"github.com/tidwall/gjson"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving proxy from consuming unbounded memory.
	maxAPIResponseBytes = 4 * 1024 * 1024

	// sessionCookieName is the proxy's session marker. Its presence in
	// the jar is the session indicator; the value is never inspected.
	sessionCookieName = "mm_pat"
)

// Client talks to the chat proxy. The session cookie lives in an in-memory
// jar only; it is never written to disk and dies with the process.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents the session cookie
// from leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates a proxy client for the given base URL. If httpClient
// is nil, a client with a 30-second timeout, an in-memory cookie jar, and
// a same-host redirect policy is created.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing proxy base URL: %w", err)
	}

	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}

		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			Jar:           jar,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
	}, nil
}

// HTTPClient exposes the underlying client so the push feed's WebSocket
// dial presents the same cookie jar.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// HasSession reports whether the session cookie is present in the jar.
// No network call is made; an expired cookie is the server's to reject.
func (c *Client) HasSession() bool {
	if c.httpClient.Jar == nil {
		return false
	}

	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == sessionCookieName && ck.Value != "" {
			return true
		}
	}

	return false
}

// ClearSession drops every cookie for the proxy host by replacing the jar.
func (c *Client) ClearSession() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return
	}

	c.httpClient.Jar = jar
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// do sends a request with an optional JSON body and returns the raw
// response body. Network failures and retryable status codes come back
// wrapped in TransientError.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("sending request to %s: %w", endpoint, err)
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &chaterr.TransientError{Err: wrapped}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, chaterr.ErrNoSession
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error").Str
		if msg == "" {
			msg = sanitizeResponseBody(respBody)
		}

		err := fmt.Errorf("proxy %s returned status %d: %s", endpoint, resp.StatusCode, msg)
		if isTransientStatus(resp.StatusCode) {
			return nil, &chaterr.TransientError{Err: err}
		}

		return nil, err
	}

	return respBody, nil
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// Bootstrap mints a chat session for the given identity. The proxy sets
// the session cookie on success; the jar captures it. A rejection comes
// back as *chaterr.BootstrapError carrying the server's message.
func (c *Client) Bootstrap(ctx context.Context, username, accessToken, community, communityTitle string) error {
	payload := map[string]string{
		"username":       username,
		"accessToken":    accessToken,
		"refreshToken":   accessToken,
		"displayName":    username,
		"community":      community,
		"communityTitle": communityTitle,
	}

	_, err := c.do(ctx, http.MethodPost, "/bootstrap", payload)
	if err != nil {
		if chaterr.IsTransient(err) || ctx.Err() != nil {
			return fmt.Errorf("bootstrapping chat: %w", err)
		}

		if errors.Is(err, chaterr.ErrNoSession) {
			return &chaterr.BootstrapError{Message: "unauthorized"}
		}

		return &chaterr.BootstrapError{Message: err.Error()}
	}

	return nil
}

// Channels fetches the raw channel list and the auxiliary user map.
func (c *Client) Channels(ctx context.Context) ([]channelRecord, map[string]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/channels", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching channels: %w", err)
	}

	records, users, err := parseChannelList(body)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding channel list: %w", err)
	}

	return records, users, nil
}

// Posts fetches the recent message list for a channel, already parsed and
// ordered ascending by creation time.
func (c *Client) Posts(ctx context.Context, channelID string) ([]Message, map[string]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/posts", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching posts for %s: %w", channelID, err)
	}

	msgs, users, err := parsePostList(body)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding posts for %s: %w", channelID, err)
	}

	return msgs, users, nil
}

// CreatePost sends a message to a channel. The created post in the
// response is ignored: authoritative application arrives via the active
// feed or the follow-up re-fetch.
func (c *Client) CreatePost(ctx context.Context, channelID, message string) error {
	payload := map[string]string{"message": message}

	if _, err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/posts", payload); err != nil {
		return fmt.Errorf("sending message to %s: %w", channelID, err)
	}

	return nil
}

// Direct requests creation (or lookup) of a direct channel with the given
// user, returning the channel identifier.
func (c *Client) Direct(ctx context.Context, username string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/direct", map[string]string{"username": username})
	if err != nil {
		return "", fmt.Errorf("creating direct channel with %s: %w", username, err)
	}

	id := gjson.GetBytes(body, "channelId").Str
	if id == "" {
		id = gjson.GetBytes(body, "id").Str
	}

	if id == "" {
		return "", fmt.Errorf("direct channel response for %s carried no channel id", username)
	}

	return id, nil
}

// React adds or removes a reaction on a post. The emoji name must already
// be the canonical reaction-kind name. An empty response body is success.
func (c *Client) React(ctx context.Context, channelID, postID, emojiName string, add bool) error {
	method := http.MethodPost
	if !add {
		method = http.MethodDelete
	}

	endpoint := "/channels/" + url.PathEscape(channelID) + "/posts/" + url.PathEscape(postID) + "/reactions"

	if _, err := c.do(ctx, method, endpoint, map[string]string{"emoji": emojiName}); err != nil {
		return fmt.Errorf("updating reaction on %s: %w", postID, err)
	}

	return nil
}
