package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/restyutil"
	"courtcase-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_submit     = "client.submit"
	report_client_poll       = "client.poll"
	report_client_balance    = "client.balance"
	report_client_report_bad = "client.report-bad"
)

// Service is the external solving service, it only exposes a pull api.
//
// note: fault injection point
type Service interface {
	// Submit sends the challenge image and returns the service's job id.
	Submit(ctx context.Context, image []byte) (string, error)
	// Poll returns the solved text, ErrNotReady while the job is pending, or
	// a *ServiceError for any terminal error the service reports.
	Poll(ctx context.Context, jobId string) (string, error)
	// ReportBad tells the service a solution was wrong.
	ReportBad(ctx context.Context, jobId string) error
}

const (
	DefaultSubmitUrl     = "http://2captcha.com/in.php"
	DefaultResultUrl     = "http://2captcha.com/res.php"
	DefaultSubmitTimeout = 30 * time.Second
	DefaultPollTimeout   = 10 * time.Second
)

const notReadyCode = "CAPCHA_NOT_READY"

type ClientOptions struct {
	ApiKey        string
	SubmitUrl     string
	ResultUrl     string
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	// RatePerSecond caps requests to the service, 0 disables the limit.
	RatePerSecond float64
	// HttpDump receives every exchange with the service when set.
	HttpDump restyutil.Output
}

// Client talks to a 2captcha compatible solving service (in.php / res.php).
type Client struct {
	opts ClientOptions
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotNil(tel)

	if opts.SubmitUrl == "" {
		opts.SubmitUrl = DefaultSubmitUrl
	}
	if opts.ResultUrl == "" {
		opts.ResultUrl = DefaultResultUrl
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}

	tel = telemetry.NewScopedAPI("captcha", tel)

	httpClient := resty.New()
	httpClient.SetHeader("user-agent", "courtcase-backend")
	if opts.RatePerSecond > 0 {
		// burst of 1 keeps submit and the first poll apart
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, "captcha", opts.HttpDump)

	return &Client{
		opts: opts,
		http: httpClient,
		tel:  tel,
	}
}

type serviceResponse struct {
	Status    int    `json:"status"`
	Request   string `json:"request"`
	ErrorText string `json:"error_text"`
}

func (c *Client) decode(res *resty.Response) (serviceResponse, error) {
	var out serviceResponse
	if res.IsError() {
		return out, fmt.Errorf("unexpected http status %s", res.Status())
	}
	err := json.Unmarshal(res.Body(), &out)
	if err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, image []byte) (string, error) {
	if c.opts.ApiKey == "" {
		c.tel.ReportWarning(report_client_submit, ErrNoCredential)
		return "", ErrNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.SubmitTimeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"key":    c.opts.ApiKey,
			"method": "post",
			"json":   "1",
		}).
		SetFileReader("file", "captcha.png", bytes.NewReader(image)).
		Post(c.opts.SubmitUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_submit, fmt.Errorf("fetch: %w", err))
		return "", err
	}
	body, err := c.decode(res)
	if err != nil {
		c.tel.ReportBroken(report_client_submit, err)
		return "", err
	}
	if body.Status != 1 {
		err := &ServiceError{Code: body.Request, Text: body.ErrorText}
		c.tel.ReportWarning(report_client_submit, err)
		return "", err
	}

	c.tel.ReportDebug("captcha submitted", body.Request)
	return body.Request, nil
}

func (c *Client) result(ctx context.Context, params map[string]string) (serviceResponse, error) {
	if c.opts.ApiKey == "" {
		return serviceResponse{}, ErrNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.PollTimeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.opts.ApiKey).
		SetQueryParam("json", "1").
		SetQueryParams(params).
		Get(c.opts.ResultUrl)
	if err != nil {
		return serviceResponse{}, fmt.Errorf("fetch: %w", err)
	}
	return c.decode(res)
}

func (c *Client) Poll(ctx context.Context, jobId string) (string, error) {
	body, err := c.result(ctx, map[string]string{
		"action": "get",
		"id":     jobId,
	})
	if err != nil {
		c.tel.ReportWarning(report_client_poll, err, jobId)
		return "", err
	}
	if body.Status == 1 {
		return body.Request, nil
	}
	if body.Request == notReadyCode {
		return "", ErrNotReady
	}

	serviceErr := &ServiceError{Code: body.Request, Text: body.ErrorText}
	c.tel.ReportWarning(report_client_poll, serviceErr, jobId)
	return "", serviceErr
}

// Balance returns the account balance, useful for monitoring spend.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.result(ctx, map[string]string{"action": "getbalance"})
	if err != nil {
		c.tel.ReportBroken(report_client_balance, err)
		return 0, err
	}
	if body.Status != 1 {
		err := &ServiceError{Code: body.Request, Text: body.ErrorText}
		c.tel.ReportWarning(report_client_balance, err)
		return 0, err
	}
	balance, err := strconv.ParseFloat(body.Request, 64)
	if err != nil {
		c.tel.ReportBroken(report_client_balance, fmt.Errorf("parse balance: %w", err), body.Request)
		return 0, err
	}
	return balance, nil
}

func (c *Client) ReportBad(ctx context.Context, jobId string) error {
	body, err := c.result(ctx, map[string]string{
		"action": "reportbad",
		"id":     jobId,
	})
	if err != nil {
		c.tel.ReportBroken(report_client_report_bad, err, jobId)
		return err
	}
	if body.Status != 1 {
		err := &ServiceError{Code: body.Request, Text: body.ErrorText}
		c.tel.ReportWarning(report_client_report_bad, err, jobId)
		return err
	}
	c.tel.ReportDebug("reported bad captcha solution", jobId)
	return nil
}
