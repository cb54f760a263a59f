package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"

	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/whttp"
)

const (
	defaultBaseURL         = "http://localhost:5001"
	defaultAlternativesTTL = 15 * time.Minute
	maxImageBytes          = 10 << 20
)

var allowedImageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// Logger receives debug output from the client and its transport.
type Logger interface {
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}

// Config controls how the client talks to the analysis service.
type Config struct {
	BaseURL         string
	APIKey          string
	Proxy           string
	RetryMax        int
	Timeout         time.Duration
	SessionID       string
	AlternativesTTL time.Duration
	HTTPClient      *retryablehttp.Client
	Log             Logger
}

// Client is the JSON-over-HTTP collaborator behind the scout controller.
type Client struct {
	baseURL      string
	apiKey       string
	sessionID    string
	http         *retryablehttp.Client
	alternatives *cache.Cache
	log          Logger
}

// NewClient validates cfg and fills in defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api base URL %q", cfg.BaseURL)
	}

	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient, err = whttp.NewClient(whttp.ClientOptions{
			Proxy:    cfg.Proxy,
			RetryMax: cfg.RetryMax,
			Timeout:  cfg.Timeout,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
	}

	ttl := cfg.AlternativesTTL
	if ttl <= 0 {
		ttl = defaultAlternativesTTL
	}

	return &Client{
		baseURL:      strings.TrimRight(base, "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		sessionID:    cfg.SessionID,
		http:         httpClient,
		alternatives: cache.New(ttl, 2*ttl),
		log:          log,
	}, nil
}

type ScoutRequest struct {
	RestaurantName string `json:"restaurant_name"`
	MenuURL        string `json:"menu_url,omitempty"`
	Location       string `json:"location,omitempty"`
}

type QuestionnaireRequest struct {
	ScoutID          string                  `json:"scout_id"`
	OriginalAnalysis scout.Analysis          `json:"original_analysis"`
	Answers          map[string]scout.Answer `json:"answers"`
}

// RestaurantRef identifies a restaurant either by scout id or by name and location.
type RestaurantRef struct {
	RestaurantID string `json:"restaurant_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Location     string `json:"location,omitempty"`
}

type AlternativesRequest struct {
	CuisineType            string `json:"cuisine_type"`
	Location               string `json:"location"`
	OriginalRestaurantName string `json:"original_restaurant_name"`
}

type RestaurantRequest struct {
	RestaurantName string `json:"restaurant_name"`
	Location       string `json:"location"`
}

// Scout submits a restaurant for analysis.
func (c *Client) Scout(ctx context.Context, req ScoutRequest) (*scout.Result, error) {
	res, err := c.postJSON(ctx, "/api/restaurant-scout", req)
	if err != nil {
		return nil, err
	}
	if !gjson.Get(res.BodyString, "analysis").IsObject() || gjson.Get(res.BodyString, "analysis.safety_score").Type != gjson.Number {
		return nil, fmt.Errorf("%w: missing analysis", ErrMalformedResponse)
	}
	var out scout.Result
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	if out.RestaurantName == "" {
		out.RestaurantName = req.RestaurantName
	}
	return &out, nil
}

// SubmitQuestionnaire sends the questionnaire answers and returns the final report.
func (c *Client) SubmitQuestionnaire(ctx context.Context, req QuestionnaireRequest) (*scout.FinalReport, error) {
	res, err := c.postJSON(ctx, "/api/restaurant-scout/questionnaire", req)
	if err != nil {
		return nil, err
	}
	if !gjson.Get(res.BodyString, "final_report").IsObject() {
		return nil, fmt.Errorf("%w: missing final_report", ErrMalformedResponse)
	}
	var out struct {
		FinalReport scout.FinalReport `json:"final_report"`
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return &out.FinalReport, nil
}

// Save adds the restaurant to the saved list. Saving twice is not an error.
func (c *Client) Save(ctx context.Context, ref RestaurantRef) error {
	res, err := c.postJSON(ctx, "/api/restaurant-scout/save", ref)
	if err != nil {
		return err
	}
	if gjson.Get(res.BodyString, "already_saved").Bool() {
		c.log.Debugf("[api] %s was already saved", refLabel(ref))
	}
	return expectSuccess(res)
}

// Unsave removes the restaurant from the saved list.
func (c *Client) Unsave(ctx context.Context, ref RestaurantRef) error {
	res, err := c.postJSON(ctx, "/api/restaurant-scout/unsave", ref)
	if err != nil {
		return err
	}
	return expectSuccess(res)
}

// CheckSaved reports whether the restaurant is on the saved list.
func (c *Client) CheckSaved(ctx context.Context, ref RestaurantRef) (bool, error) {
	res, err := c.postJSON(ctx, "/api/restaurant-scout/check-saved", ref)
	if err != nil {
		return false, err
	}
	saved := gjson.Get(res.BodyString, "saved")
	if saved.Type != gjson.True && saved.Type != gjson.False {
		return false, fmt.Errorf("%w: missing saved flag", ErrMalformedResponse)
	}
	return saved.Bool(), nil
}

// Alternatives asks for safer restaurants nearby. Responses are cached per
// cuisine, location and excluded restaurant.
func (c *Client) Alternatives(ctx context.Context, req AlternativesRequest) ([]scout.Alternative, error) {
	key := strings.ToLower(strings.Join([]string{req.CuisineType, req.Location, req.OriginalRestaurantName}, "|"))
	if cached, ok := c.alternatives.Get(key); ok {
		c.log.Debugf("[api] alternatives cache hit for %s", key)
		return cached.([]scout.Alternative), nil
	}

	res, err := c.postJSON(ctx, "/api/restaurant-scout/alternatives", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Alternatives []scout.Alternative `json:"alternatives"`
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	c.alternatives.Set(key, out.Alternatives, cache.DefaultExpiration)
	return out.Alternatives, nil
}

// RequestRestaurant files a request for a restaurant the service could not
// scout. The returned label is only meant for display.
func (c *Client) RequestRestaurant(ctx context.Context, req RestaurantRequest) (string, error) {
	res, err := c.postJSON(ctx, "/api/restaurant-scout/request", req)
	if err != nil {
		return "", err
	}
	for _, path := range []string{"message", "status"} {
		if v := gjson.Get(res.BodyString, path).String(); v != "" {
			return v, nil
		}
	}
	return "Requested", nil
}

// SavedRestaurants lists the saved restaurants.
func (c *Client) SavedRestaurants(ctx context.Context) ([]scout.SavedRestaurant, error) {
	res, err := c.send(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: c.baseURL + "/api/restaurant-scout/saved"})
	if err != nil {
		return nil, err
	}
	var out []scout.SavedRestaurant
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History lists prior packaged-food scans, newest first.
func (c *Client) History(ctx context.Context) ([]scout.ScanRecord, error) {
	res, err := c.send(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: c.baseURL + "/api/history"})
	if err != nil {
		return nil, err
	}
	var out []scout.ScanRecord
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteHistory removes one scan.
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("scan id is required")
	}
	res, err := c.send(ctx, &whttp.WHTTPReq{Method: http.MethodDelete, URL: c.baseURL + "/api/history/" + url.PathEscape(id)})
	if err != nil {
		return err
	}
	return expectSuccess(res)
}

// Scan uploads a photo of a packaged-food ingredient label.
func (c *Client) Scan(ctx context.Context, filename string, image io.Reader) (*scout.ScanRecord, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	mediaType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("file type not allowed: use PNG, JPG, WEBP, or GIF")
	}

	data, err := io.ReadAll(io.LimitReader(image, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image is larger than %d MB", maxImageBytes>>20)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	res, err := c.send(ctx, &whttp.WHTTPReq{
		Method:      http.MethodPost,
		URL:         c.baseURL + "/api/scan",
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	if gjson.Get(res.BodyString, "verdict").String() == "" {
		return nil, fmt.Errorf("%w: missing verdict", ErrMalformedResponse)
	}
	var out scout.ScanRecord
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*whttp.WHTTPRes, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, &whttp.WHTTPReq{
		Method:      http.MethodPost,
		URL:         c.baseURL + path,
		Body:        payload,
		ContentType: "application/json",
	})
}

// send performs the request and converts non-2xx responses to errors.
func (c *Client) send(ctx context.Context, req *whttp.WHTTPReq) (*whttp.WHTTPRes, error) {
	if c.apiKey != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "Authorization", Value: "Bearer " + c.apiKey})
	}
	if c.sessionID != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "X-Scout-Session", Value: c.sessionID})
	}

	c.log.Debugf("[api] %s %s", req.Method, req.URL)
	res, err := whttp.SendHTTPRequest(ctx, req, c.http)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("[api] %s %s -> %d (%d chars)", req.Method, req.URL, res.StatusCode, res.ResponseLength)

	if !res.OK() {
		return nil, responseError(res)
	}
	return res, nil
}

func decode(res *whttp.WHTTPRes, v interface{}) error {
	if !gjson.Valid(res.BodyString) {
		return ErrMalformedResponse
	}
	if err := json.Unmarshal([]byte(res.BodyString), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func expectSuccess(res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) {
		return ErrMalformedResponse
	}
	if msg := gjson.Get(res.BodyString, "error").String(); msg != "" {
		return &Error{StatusCode: res.StatusCode, Message: msg}
	}
	if s := gjson.Get(res.BodyString, "success"); s.Exists() && !s.Bool() {
		return &Error{StatusCode: res.StatusCode, Message: "request was not successful"}
	}
	return nil
}

func refLabel(ref RestaurantRef) string {
	if ref.RestaurantID != "" {
		return ref.RestaurantID
	}
	if ref.Location != "" {
		return ref.Name + " (" + ref.Location + ")"
	}
	return ref.Name
}
