// Package client is a typed HTTP client for the feed API.
//
// Authenticated calls attach "Authorization: Bearer <token>" through an
// oauth2.Transport over a static token source; the token is whatever the
// server returned from /auth/register or /auth/login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/portfolio-feed/internal/model"
)

// DefaultTimeout bounds every request made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string // the "error" field of the body, when present
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("client: server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to one feed server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid server URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewPost is the request body of CreatePost.
type NewPost struct {
	Author  string `json:"author,omitempty"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// AuthResult is the body of /auth/register (all fields) and /auth/login
// (Token and Username only).
type AuthResult struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ListPosts returns the feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, "", http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

// CreatePost publishes a post. The server requires a token.
func (c *Client) CreatePost(ctx context.Context, token string, in NewPost) (*model.Post, error) {
	var post model.Post
	if err := c.do(ctx, token, http.MethodPost, "/posts", in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes a post. An unknown id is a 404 StatusError.
func (c *Client) DeletePost(ctx context.Context, token, id string) error {
	return c.do(ctx, token, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

// AddComment appends a comment to a post.
func (c *Client) AddComment(ctx context.Context, token, postID, author, content string) (*model.Comment, error) {
	body := map[string]string{"author": author, "content": content}

	var comment model.Comment
	if err := c.do(ctx, token, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ToggleLike likes or unlikes as author; an empty author is an anonymous like.
func (c *Client) ToggleLike(ctx context.Context, token, postID, author string) (int, error) {
	body := map[string]string{}
	if author != "" {
		body["author"] = author
	}

	var out struct {
		Likes int `json:"likes"`
	}
	if err := c.do(ctx, token, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/likes", body, &out); err != nil {
		return 0, err
	}
	return out.Likes, nil
}

// Register creates an account and returns its first session token.
func (c *Client) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	return c.credentials(ctx, "/auth/register", username, password)
}

// Login returns a new session token for an existing account.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	return c.credentials(ctx, "/auth/login", username, password)
}

func (c *Client) credentials(ctx context.Context, path, username, password string) (*AuthResult, error) {
	body := map[string]string{"username": username, "password": password}

	var res AuthResult
	if err := c.do(ctx, "", http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// authed returns an HTTP client that sends token as a bearer credential.
func (c *Client) authed(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

func (c *Client) do(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.http
	if token != "" {
		hc = c.authed(token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s response: %w", method, path, err)
	}
	return nil
}
