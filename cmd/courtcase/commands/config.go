package commands

import (
	"os"

	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/captcha"
	"courtcase-backend/internal/components/configutil"
	"courtcase-backend/internal/db"
	"courtcase-backend/internal/documents"
	"courtcase-backend/internal/scrapers/court"
)

const (
	defaultConfigName  = "config.json5"
	defaultBaseUrl     = "https://delhihighcourt.nic.in"
	defaultDatabase    = ".data/courtcase.db"
	defaultDownloadDir = "downloads"
	captchaApiKeyEnv   = "CAPTCHA_API_KEY"
	baseUrlEnv         = "COURT_BASE_URL"
)

type SiteConfig struct {
	BaseUrl           string              `json:"base_url"`
	NavigationTimeout configutil.Duration `json:"navigation_timeout"`
	ActionTimeout     configutil.Duration `json:"action_timeout"`
	ClickSettle       configutil.Duration `json:"click_settle"`
	SubmitSettle      configutil.Duration `json:"submit_settle"`
}

type BrowserConfig struct {
	// Headless defaults to true when unset.
	Headless       *bool  `json:"headless"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	Bin            string `json:"bin"`
}

type CaptchaConfig struct {
	ApiKey         string              `json:"api_key"`
	SubmitUrl      string              `json:"submit_url"`
	ResultUrl      string              `json:"result_url"`
	PollInterval   configutil.Duration `json:"poll_interval"`
	MaxAttempts    int                 `json:"max_attempts"`
	RequestTimeout configutil.Duration `json:"request_timeout"`
	RatePerSecond  float64             `json:"rate_per_second"`
}

type DownloadsConfig struct {
	Dir           string              `json:"dir"`
	RatePerSecond float64             `json:"rate_per_second"`
	Timeout       configutil.Duration `json:"timeout"`
}

type Config struct {
	Site                   SiteConfig      `json:"site"`
	Browser                BrowserConfig   `json:"browser"`
	Captcha                CaptchaConfig   `json:"captcha"`
	Selectors              court.Selectors `json:"selectors"`
	NoRecordsMarkers       court.NoRecords `json:"no_records_markers"`
	CaptchaRejectedMarkers []string        `json:"captcha_rejected_markers"`
	Database               db.Config       `json:"database"`
	Downloads              DownloadsConfig `json:"downloads"`
}

// loadConfig reads the config file at path, or searches up from the working
// directory for config.json5 when path is empty. A missing file is not an
// error, every field has a default.
func loadConfig(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	if path != "" {
		cfg, err = configutil.ReadConfig[Config](path)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return Config{}, err
		}
		cfg, err = configutil.ReadRecursively[Config](wd, defaultConfigName)
	}
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err != nil && path != "" {
		return Config{}, err
	}
	return cfg.withDefaults(os.Getenv), nil
}

func (c Config) withDefaults(getenv func(string) string) Config {
	if c.Site.BaseUrl == "" {
		c.Site.BaseUrl = getenv(baseUrlEnv)
	}
	if c.Site.BaseUrl == "" {
		c.Site.BaseUrl = defaultBaseUrl
	}
	if c.Captcha.ApiKey == "" {
		c.Captcha.ApiKey = getenv(captchaApiKeyEnv)
	}
	if c.Captcha.RatePerSecond <= 0 {
		c.Captcha.RatePerSecond = 1
	}
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = defaultDatabase
	}
	if c.Downloads.Dir == "" {
		c.Downloads.Dir = defaultDownloadDir
	}
	return c
}

func (c Config) browserOptions() browser.Options {
	opts := browser.DefaultOptions(c.Site.BaseUrl)
	if c.Browser.Headless != nil {
		opts.Headless = *c.Browser.Headless
	}
	if c.Browser.ViewportWidth > 0 {
		opts.ViewportWidth = c.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight > 0 {
		opts.ViewportHeight = c.Browser.ViewportHeight
	}
	if c.Browser.UserAgent != "" {
		opts.UserAgent = c.Browser.UserAgent
	}
	if c.Browser.AcceptLanguage != "" {
		opts.AcceptLanguage = c.Browser.AcceptLanguage
	}
	opts.Bin = c.Browser.Bin
	opts.NavigationTimeout = c.Site.NavigationTimeout.Or(opts.NavigationTimeout)
	opts.ActionTimeout = c.Site.ActionTimeout.Or(opts.ActionTimeout)
	opts.ClickSettle = c.Site.ClickSettle.Or(opts.ClickSettle)
	return opts
}

func (c Config) captchaOptions() captcha.ClientOptions {
	return captcha.ClientOptions{
		ApiKey:        c.Captcha.ApiKey,
		SubmitUrl:     c.Captcha.SubmitUrl,
		ResultUrl:     c.Captcha.ResultUrl,
		SubmitTimeout: c.Captcha.RequestTimeout.Or(captcha.DefaultSubmitTimeout),
		PollTimeout:   c.Captcha.RequestTimeout.Or(captcha.DefaultPollTimeout),
		RatePerSecond: c.Captcha.RatePerSecond,
	}
}

func (c Config) engineOptions() court.Options {
	opts := court.DefaultOptions(c.Site.BaseUrl)
	// unset locators fall back per element inside the engine
	opts.Selectors = c.Selectors
	if len(c.NoRecordsMarkers.Texts) > 0 || len(c.NoRecordsMarkers.Selectors) > 0 {
		opts.NoRecords = c.NoRecordsMarkers
	}
	if len(c.CaptchaRejectedMarkers) > 0 {
		opts.CaptchaRejectedMarkers = c.CaptchaRejectedMarkers
	}
	opts.SubmitSettle = c.Site.SubmitSettle.Or(opts.SubmitSettle)
	opts.CaptchaPollInterval = c.Captcha.PollInterval.Or(opts.CaptchaPollInterval)
	if c.Captcha.MaxAttempts > 0 {
		opts.CaptchaMaxAttempts = c.Captcha.MaxAttempts
	}
	return opts
}

func (c Config) downloadOptions() documents.Options {
	return documents.Options{
		Timeout:       c.Downloads.Timeout.Std(),
		RatePerSecond: c.Downloads.RatePerSecond,
	}
}
