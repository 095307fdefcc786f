/*
Copyright 2026 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/gravitational/coindash/lib/auth"
	"github.com/gravitational/coindash/lib/credentials"
	"github.com/gravitational/coindash/lib/logger"
)

const (
	// DefaultBaseURL is the public CoinGecko API.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "coindash"

	maxConnsPerHost = 100
	jsonContentType = "application/json"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the API section of the configuration file.
type Config struct {
	BaseURL   string        `toml:"base_url"`
	Timeout   time.Duration `toml:"timeout"`
	CAFile    string        `toml:"ca_file"`
	UserAgent string        `toml:"user_agent"`
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return trace.BadParameter("invalid base URL %q: %v", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return trace.BadParameter("base URL %q must be an http(s) URL", c.BaseURL)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < 0 {
		return trace.BadParameter("timeout must be positive, got %v", c.Timeout)
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

// NewBaseTransport returns the transport performing the actual network calls.
// The configured CA is trusted in addition to the system pool.
func NewBaseTransport(conf Config) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = maxConnsPerHost
	transport.MaxIdleConnsPerHost = maxConnsPerHost

	if conf.CAFile == "" {
		return transport, nil
	}
	caCert, err := os.ReadFile(conf.CAFile)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, trace.BadParameter("no certificates found in %q", conf.CAFile)
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.RootCAs = pool
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	return transport, nil
}

// Identifiable is implemented by resources addressable by id.
type Identifiable interface {
	ResourceID() string
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CheckAndSetDefaults validates the login payload.
func (r *LoginRequest) CheckAndSetDefaults() error {
	if r.Email == "" {
		return trace.BadParameter("missing email")
	}
	if r.Password == "" {
		return trace.BadParameter("missing password")
	}
	return nil
}

// Blob is a raw response body.
type Blob struct {
	ContentType string
	Data        []byte
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport sets the transport underneath the client, usually the
// token refreshing auth.Transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithErrorHook sets the function called once with every failure.
func WithErrorHook(hook func(error)) ClientOption {
	return func(c *Client) {
		c.onError = hook
	}
}

// WithSession sets the session persisting the credentials obtained by Login.
func WithSession(session *auth.Session) ClientOption {
	return func(c *Client) {
		c.session = session
	}
}

// WithLogger sets the client logger.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// Client is a resource oriented wrapper around resty.Client.
type Client struct {
	client    *resty.Client
	transport http.RoundTripper
	baseURL   string
	session   *auth.Session
	onError   func(error)
	log       logrus.FieldLogger
	token     atomic.Value // string
	cursors   *cursors

	stream *resty.Client
}

// NewClient creates a Client.
func NewClient(conf Config, options ...ClientOption) (*Client, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	c := &Client{
		baseURL: conf.BaseURL,
		onError: func(error) {},
		log:     logger.Standard(),
		cursors: newCursors(),
	}
	c.token.Store("")
	for _, opt := range options {
		opt(c)
	}
	if c.transport == nil {
		transport, err := NewBaseTransport(conf)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		c.transport = transport
	}

	c.client = c.newResty(conf, conf.Timeout)
	// Event streams stay open for as long as the server pushes events.
	c.stream = c.newResty(conf, 0)

	return c, nil
}

func (c *Client) newResty(conf Config, timeout time.Duration) *resty.Client {
	client := resty.NewWithClient(&http.Client{
		Timeout:   timeout,
		Transport: c.transport,
	}).
		SetBaseURL(conf.BaseURL).
		SetHeader("Content-Type", jsonContentType).
		SetHeader("Accept", jsonContentType).
		SetHeader("User-Agent", conf.UserAgent).
		SetJSONMarshaler(codec.Marshal).
		SetJSONUnmarshaler(codec.Unmarshal).
		SetLogger(c.log)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token := c.AuthToken(); token != "" && req.Token == "" {
			req.SetAuthToken(token)
		}
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.IsError() {
			return newStatusError(resp.StatusCode(), resp.Body())
		}
		return nil
	})
	return client
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken sets the default bearer token sent with requests. An empty
// token removes it. Suitable as auth.SessionConfig.OnTokenRefreshed.
func (c *Client) SetAuthToken(token string) {
	c.token.Store(token)
}

// AuthToken returns the default bearer token.
func (c *Client) AuthToken() string {
	token, _ := c.token.Load().(string)
	return token
}

// GetAll fetches a resource listing and decodes the body into out.
func (c *Client) GetAll(ctx context.Context, resource string, params, out interface{}) error {
	values, err := encodeQuery(params)
	if err != nil {
		return c.fail(err)
	}
	resp, err := c.send(c.request(ctx).SetQueryParamsFromValues(values), http.MethodGet, resourcePath(resource))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// GetAllPaginated fetches one page of a paginated listing and decodes its
// data into out. The page is the one set in params or, if none, the current
// page of the listing cursor. The cursor is updated from the response.
func (c *Client) GetAllPaginated(ctx context.Context, resource string, params, out interface{}) error {
	values, err := encodeQuery(params)
	if err != nil {
		return c.fail(err)
	}
	key := cursorKey(resource, values)
	cursor := c.cursors.getOrCreate(key)

	page := requestedPage(values)
	if page == 0 {
		page = cursor.CurrentPage
	}
	values.Set(pageParam, strconv.Itoa(page))

	log := logger.Get(ctx).WithFields(logger.Fields{"resource": resource, "page": page})
	resp, err := c.send(c.request(ctx).SetQueryParamsFromValues(values), http.MethodGet, resourcePath(resource))
	if err != nil {
		return err
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return c.fail(trace.BadParameter("malformed paginated response from %q", resource))
	}
	envelope := gjson.ParseBytes(body)
	data := envelope.Get("data")
	if !data.Exists() {
		return c.fail(trace.BadParameter("paginated response from %q carries no data", resource))
	}
	if err := c.unmarshal([]byte(data.Raw), out); err != nil {
		return err
	}

	next := Cursor{CurrentPage: int(envelope.Get("page").Int())}
	if next.CurrentPage == 0 {
		next.CurrentPage = page
	}
	if nextPage := int(envelope.Get("nextPage").Int()); nextPage > 0 {
		next.NextPage = &nextPage
	}
	c.cursors.set(key, next)
	log.WithFields(logger.Fields{
		"total":     envelope.Get("total").Int(),
		"has_next":  next.HasNext(),
		"cursor_id": key,
	}).Debug("Paginated listing fetched")

	return nil
}

// GetNextPage fetches the page after the current one of the listing. It
// returns false without a network call when the listing has no cursor or is
// exhausted, leaving out empty.
func (c *Client) GetNextPage(ctx context.Context, resource string, params, out interface{}) (bool, error) {
	values, err := encodeQuery(params)
	if err != nil {
		return false, c.fail(err)
	}
	cursor, ok := c.cursors.get(cursorKey(resource, values))
	if !ok || cursor.NextPage == nil {
		resetValue(out)
		return false, nil
	}
	values.Set(pageParam, strconv.Itoa(*cursor.NextPage))
	if err := c.GetAllPaginated(ctx, resource, values, out); err != nil {
		return false, err
	}
	return true, nil
}

// Cursor returns a snapshot of the cursor of a listing.
func (c *Client) Cursor(resource string, params interface{}) (Cursor, bool) {
	values, err := encodeQuery(params)
	if err != nil {
		return Cursor{}, false
	}
	return c.cursors.get(cursorKey(resource, values))
}

// ResetCursors forgets every listing position.
func (c *Client) ResetCursors() {
	c.cursors.reset()
}

// GetOne fetches a single item.
func (c *Client) GetOne(ctx context.Context, resource, id string, out interface{}) error {
	resp, err := c.send(c.request(ctx), http.MethodGet, resourcePath(resource, id))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// GetBlob fetches a resource as raw bytes.
func (c *Client) GetBlob(ctx context.Context, resource string, params interface{}) (*Blob, error) {
	values, err := encodeQuery(params)
	if err != nil {
		return nil, c.fail(err)
	}
	req := c.request(ctx).
		SetQueryParamsFromValues(values).
		SetHeader("Accept", "*/*")
	resp, err := c.send(req, http.MethodGet, resourcePath(resource))
	if err != nil {
		return nil, err
	}
	return &Blob{
		ContentType: resp.Header().Get("Content-Type"),
		Data:        resp.Body(),
	}, nil
}

// Execute posts the body to an arbitrary endpoint.
func (c *Client) Execute(ctx context.Context, endpoint Endpoint, body, out interface{}) error {
	resp, err := c.send(c.request(ctx).SetBody(body), http.MethodPost, endpoint.String())
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// Create posts a new item.
func (c *Client) Create(ctx context.Context, resource string, item, out interface{}) error {
	resp, err := c.send(c.request(ctx).SetBody(item), http.MethodPost, resourcePath(resource))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// Update replaces the item identified by its ResourceID.
func (c *Client) Update(ctx context.Context, resource string, item Identifiable, out interface{}) error {
	if isNil(item) {
		return c.fail(trace.BadParameter("missing %v item to update", resource))
	}
	id := item.ResourceID()
	if id == "" {
		return c.fail(trace.BadParameter("%v item to update has no id", resource))
	}
	resp, err := c.send(c.request(ctx).SetBody(item), http.MethodPut, resourcePath(resource, id))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// Patch sends a partial update of the resource.
func (c *Client) Patch(ctx context.Context, resource string, item, out interface{}) error {
	resp, err := c.send(c.request(ctx).SetBody(item), http.MethodPatch, resourcePath(resource))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// Remove deletes the item by id.
func (c *Client) Remove(ctx context.Context, resource, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, resourcePath(resource, id))
	return err
}

// RemoveItem deletes the item described by the request body.
func (c *Client) RemoveItem(ctx context.Context, resource string, item interface{}) error {
	_, err := c.send(c.request(ctx).SetBody(item), http.MethodDelete, resourcePath(resource))
	return err
}

// Login exchanges user credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, login LoginRequest) (*credentials.Credentials, error) {
	if err := login.CheckAndSetDefaults(); err != nil {
		return nil, c.fail(err)
	}

	var creds credentials.Credentials
	resp, err := c.send(c.request(ctx).SetBody(login), http.MethodPost, auth.LoginPath)
	if err != nil {
		return nil, err
	}
	if err := c.decode(resp, &creds); err != nil {
		return nil, err
	}
	if err := creds.CheckAndSetDefaults(); err != nil {
		return nil, c.fail(trace.Wrap(err, "malformed login response"))
	}

	if c.session != nil {
		if err := c.session.SetCredentials(ctx, &creds); err != nil {
			return nil, c.fail(err)
		}
	}
	c.SetAuthToken(creds.AccessToken)
	logger.Get(ctx).Debug("Logged in")

	return &creds, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.client.R().SetContext(ctx)
}

// send executes the request. Failures go through the error hook.
func (c *Client) send(req *resty.Request, method, target string) (*resty.Response, error) {
	resp, err := req.Execute(method, target)
	if err == nil {
		return resp, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		logger.Get(req.Context()).WithFields(logger.Fields{
			"method": method,
			"url":    target,
			"status": statusErr.Code,
		}).Debug("Request failed")
		return resp, c.fail(statusErr)
	}
	return resp, c.fail(trace.Wrap(err))
}

func (c *Client) decode(resp *resty.Response, out interface{}) error {
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	return c.unmarshal(resp.Body(), out)
}

func (c *Client) unmarshal(data []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(data, out); err != nil {
		return c.fail(trace.Wrap(err, "decoding response"))
	}
	return nil
}

func (c *Client) fail(err error) error {
	c.onError(err)
	return err
}

// resetValue sets the value out points to to its zero value. Slices become empty
// rather than nil.
func resetValue(out interface{}) {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	elem := v.Elem()
	if elem.Kind() == reflect.Slice {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return
	}
	elem.Set(reflect.Zero(elem.Type()))
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
