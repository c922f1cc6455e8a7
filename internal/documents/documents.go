// Package documents downloads order and judgment files found by a search.
package documents

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/restyutil"
	"courtcase-backend/internal/components/telemetry"
	"courtcase-backend/internal/scrapers/court"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_download       = "downloader.download"
	report_download_count = "downloader.files"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultRatePerSecond = 1
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	UserAgent     string
	// HttpDump receives every download exchange when set.
	HttpDump restyutil.Output
}

type Downloader struct {
	http *resty.Client
	tel  telemetry.API
}

func NewDownloader(opts Options, tel telemetry.API) *Downloader {
	assert.NotNil(tel)

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = DefaultRatePerSecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	tel = telemetry.NewScopedAPI("documents", tel)

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, "documents", opts.HttpDump)

	return &Downloader{
		http: httpClient,
		tel:  tel,
	}
}

var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".rtf":  true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.\-]+`)

func sanitize(value string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(value, "_"), "_.")
}

// Filename derives a file name from the case number, date and type of a
// document. The index keeps documents of the same case and day apart.
func Filename(doc court.OrderDocument, index int) string {
	var parts []string
	for _, p := range []string{doc.CaseNumber, doc.Date, string(doc.Type)} {
		p = sanitize(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "document")
	}
	parts = append(parts, strconv.Itoa(index+1))

	ext := ".pdf"
	parsed, err := url.Parse(doc.Url)
	if err == nil {
		candidate := strings.ToLower(path.Ext(parsed.Path))
		if documentExtensions[candidate] {
			ext = candidate
		}
	}
	return strings.Join(parts, "_") + ext
}

// Download fetches a single document into dir and returns the path written.
func (d *Downloader) Download(ctx context.Context, doc court.OrderDocument, index int, dir string) (string, error) {
	if doc.Url == "" {
		err := fmt.Errorf("document %q has no url", doc.Title)
		d.tel.ReportWarning(report_download, err)
		return "", err
	}

	res, err := d.http.R().
		SetContext(ctx).
		Get(doc.Url)
	if err != nil {
		d.tel.ReportBroken(report_download, err, doc.Url)
		return "", err
	}
	if !res.IsSuccess() {
		err = fmt.Errorf("download %s: unexpected http status %s", doc.Url, res.Status())
		d.tel.ReportWarning(report_download, err)
		return "", err
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		d.tel.ReportBroken(report_download, err, dir)
		return "", err
	}
	target := filepath.Join(dir, Filename(doc, index))
	err = os.WriteFile(target, res.Body(), 0644)
	if err != nil {
		d.tel.ReportBroken(report_download, err, target)
		return "", err
	}

	d.tel.ReportCount(report_download_count, 1)
	return target, nil
}

// DownloadAll fetches every document, keeps going past individual failures
// and returns the paths that were written along with the joined errors.
func (d *Downloader) DownloadAll(ctx context.Context, docs []court.OrderDocument, dir string) ([]string, error) {
	var written []string
	var errs []error
	for i, doc := range docs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		target, err := d.Download(ctx, doc, i, dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, target)
	}
	return written, errors.Join(errs...)
}
