package blinkapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
	"github.com/jake-scott/blink-homekit/internal/pkg/session"
	"github.com/jake-scott/blink-homekit/version"
)

const (
	defaultTier = "prod"

	// entries outlive the longest staleness hint the bridge uses
	cacheExpiry  = time.Hour * 2
	cacheCleanup = time.Minute * 10
)

// state shared between copies made by the With* builders
type shared struct {
	mu     sync.Mutex
	tokens oauth2.TokenSource
	cache  *cache.Cache
}

type Live struct {
	session    *session.State
	baseURL    string
	tokenURL   string
	timeout    time.Duration
	httpClient *http.Client
	shared     *shared
}

type cached struct {
	fetched time.Time
	value   interface{}
}

func NewLiveClient(s *session.State) *Live {
	return &Live{
		session:  s,
		tokenURL: DefaultTokenURL,
		shared: &shared{
			cache: cache.New(cacheExpiry, cacheCleanup),
		},
	}
}

func (c *Live) WithTimeout(d time.Duration) Client {
	nc := *c
	nc.timeout = d
	return &nc
}

// WithBaseURL overrides the tier derived REST endpoint
func (c *Live) WithBaseURL(u string) *Live {
	nc := *c
	nc.baseURL = u
	return &nc
}

func (c *Live) WithTokenURL(u string) *Live {
	nc := *c
	nc.tokenURL = u
	return &nc
}

func (c *Live) WithHTTPClient(hc *http.Client) *Live {
	nc := *c
	nc.httpClient = hc
	return &nc
}

func (c *Live) apiBaseURL() string {
	if c.baseURL != "" {
		return c.baseURL
	}

	tier := defaultTier
	if c.session != nil && c.session.Tier != "" {
		tier = c.session.Tier
	}
	return fmt.Sprintf("https://rest-%s.immedia-semi.com", tier)
}

func (c *Live) api() *resty.Client {
	var r *resty.Client
	if c.httpClient != nil {
		r = resty.NewWithClient(c.httpClient)
	} else {
		r = resty.New()
	}

	r.SetBaseURL(c.apiBaseURL())
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", version.UserAgent())
	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		metrics.APIRequests.WithLabelValues(resp.Request.Method, strconv.Itoa(resp.StatusCode())).Inc()
		return nil
	})

	return r
}

func (c *Live) makeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	return ctx, cancel
}

func (c *Live) accountID() int64 {
	if c.session == nil {
		return 0
	}
	return c.session.AccountID
}

func (c *Live) accountPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/api/v1/accounts/%d", c.accountID()) + fmt.Sprintf(format, args...)
}

// call issues an authenticated request and decodes a JSON response into
// result, when given
func (c *Live) call(ctx context.Context, method, path string, query map[string]string, result interface{}) (*resty.Response, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.makeContext(ctx)
	defer cancel()

	req := c.api().R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken)
	if query != nil {
		req.SetQueryParams(query)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	if resp.IsError() {
		return nil, errors.Wrapf(&APIError{StatusCode: resp.StatusCode(), Body: resp.String()}, "%s %s", method, path)
	}

	return resp, nil
}

// fromCache returns a value fetched less than maxAge ago
func (c *Live) fromCache(resource, key string, maxAge time.Duration) (interface{}, bool) {
	if maxAge > 0 {
		if v, ok := c.shared.cache.Get(key); ok {
			entry := v.(cached)
			if time.Since(entry.fetched) < maxAge {
				metrics.APICache.WithLabelValues(resource, "hit").Inc()
				return entry.value, true
			}
		}
	}

	metrics.APICache.WithLabelValues(resource, "miss").Inc()
	return nil, false
}

func (c *Live) toCache(key string, value interface{}) {
	c.shared.cache.SetDefault(key, cached{fetched: time.Now(), value: value})
}

func (c *Live) AccountSnapshot(ctx context.Context, maxAge time.Duration) (*Homescreen, error) {
	path := fmt.Sprintf("/api/v3/accounts/%d/homescreen", c.accountID())
	if v, ok := c.fromCache("homescreen", path, maxAge); ok {
		return v.(*Homescreen), nil
	}

	hs := &Homescreen{}
	if _, err := c.call(ctx, http.MethodGet, path, nil, hs); err != nil {
		return nil, errors.Wrap(err, "fetching homescreen")
	}

	c.toCache(path, hs)
	return hs, nil
}

func (c *Live) CommandStatus(ctx context.Context, networkID, commandID int64) (*Command, error) {
	cmd := &Command{}
	path := fmt.Sprintf("/network/%d/command/%d", networkID, commandID)
	if _, err := c.call(ctx, http.MethodGet, path, nil, cmd); err != nil {
		return nil, errors.Wrapf(err, "fetching status of command %d", commandID)
	}

	return cmd, nil
}

func (c *Live) command(ctx context.Context, path string) (*Command, error) {
	logging.Logger(ctx).Debugf("sending command: %s", path)

	cmd := &Command{}
	if _, err := c.call(ctx, http.MethodPost, path, nil, cmd); err != nil {
		return nil, errors.Wrapf(err, "executing command: %s", path)
	}

	return cmd, nil
}

func (c *Live) ArmNetwork(ctx context.Context, networkID int64) (*Command, error) {
	return c.command(ctx, c.accountPath("/networks/%d/state/arm", networkID))
}

func (c *Live) DisarmNetwork(ctx context.Context, networkID int64) (*Command, error) {
	return c.command(ctx, c.accountPath("/networks/%d/state/disarm", networkID))
}

func (c *Live) EnableCameraMotion(ctx context.Context, networkID, cameraID int64) (*Command, error) {
	return c.command(ctx, fmt.Sprintf("/network/%d/camera/%d/enable", networkID, cameraID))
}

func (c *Live) DisableCameraMotion(ctx context.Context, networkID, cameraID int64) (*Command, error) {
	return c.command(ctx, fmt.Sprintf("/network/%d/camera/%d/disable", networkID, cameraID))
}

func (c *Live) UpdateCameraThumbnail(ctx context.Context, networkID, cameraID int64) (*Command, error) {
	return c.command(ctx, fmt.Sprintf("/network/%d/camera/%d/thumbnail", networkID, cameraID))
}

func (c *Live) CameraStatus(ctx context.Context, networkID, cameraID int64, maxAge time.Duration) (*CameraStatus, error) {
	path := fmt.Sprintf("/network/%d/camera/%d", networkID, cameraID)
	if v, ok := c.fromCache("camera-status", path, maxAge); ok {
		return v.(*CameraStatus), nil
	}

	resp := &cameraStatusResponse{}
	if _, err := c.call(ctx, http.MethodGet, path, nil, resp); err != nil {
		return nil, errors.Wrapf(err, "fetching status of camera %d", cameraID)
	}

	status := resp.CameraStatus
	if status == nil {
		status = &CameraStatus{CameraID: cameraID}
	}

	c.toCache(path, status)
	return status, nil
}

func (c *Live) MediaChanges(ctx context.Context) (*MediaChanges, error) {
	query := map[string]string{
		"since": "1970-01-01T00:00:00+0000",
		"page":  "1",
	}

	mc := &MediaChanges{}
	if _, err := c.call(ctx, http.MethodGet, c.accountPath("/media/changed"), query, mc); err != nil {
		return nil, errors.Wrap(err, "fetching media changes")
	}

	return mc, nil
}

func (c *Live) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", path)
	}

	return resp.Body(), nil
}
