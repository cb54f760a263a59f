package whttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const (
	USER_AGENT = "glutenguard-cli/2 (+https://glutenguard.app)"

	defaultRetryMax = 2
	defaultTimeout  = 120 * time.Second
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL         string
	Method      string
	Headers     []WHTTPHeader
	Body        []byte
	ContentType string
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
	ContentType    string
}

// OK reports a 2xx status.
func (r *WHTTPRes) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Printfer is the minimal logger retryablehttp debug output is routed to.
type Printfer interface {
	Debugf(format string, args ...interface{})
}

type printfLogger struct{ l Printfer }

func (p printfLogger) Printf(format string, args ...interface{}) { p.l.Debugf(format, args...) }

// ClientOptions controls the retrying client.
type ClientOptions struct {
	Proxy    string
	RetryMax int
	Timeout  time.Duration
	Insecure bool
	Logger   Printfer
}

// NewClient builds a retrying client. HTTP 429 is never retried because the
// backend uses it to signal a usage limit, POST responses are never retried,
// and the final response is always handed back so its body can be inspected.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	if c.RetryMax < 0 {
		c.RetryMax = defaultRetryMax
	}
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.CheckRetry = checkRetry
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		c.Logger = printfLogger{opts.Logger}
	} else {
		c.Logger = nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.HTTPClient.Timeout = timeout

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		c.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure},
		}
	}
	return c, nil
}

// checkRetry retries connection failures for every method, but a response
// is only retried for idempotent requests. A POST that reached the server
// has already started the work it asked for.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		if resp.Request != nil && !idempotent(resp.Request.Method) {
			return false, nil
		}
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (wRes *WHTTPRes, err error) {
	if client == nil {
		client, err = NewClient(ClientOptions{RetryMax: defaultRetryMax})
		if err != nil {
			return nil, err
		}
	}

	var body interface{}
	if wReq.Body != nil {
		body = wReq.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")
	if wReq.ContentType != "" {
		req.Header.Set("Content-Type", wReq.ContentType)
	}

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes = &WHTTPRes{
		StatusCode:  resp.StatusCode,
		BodyString:  string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
	}

	if strings.Contains(wRes.ContentType, "html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}
