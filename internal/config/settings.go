package config

// Settings mirrors every environment variable recognized in spec §6.
// Field order follows the spec's own grouping (Input, Output, Probing,
// Geo, Execution, Caching, Export, Speed test).
type Settings struct {
	// Input
	Mode          string `env:"MODE" default:"single"`
	LinksFile     string `env:"LINKS_FILE"`
	DefaultListURL string `env:"DEFAULT_LIST_URL" default:"https://example.invalid/list.txt"`

	// Output
	OutputDir     string `env:"OUTPUT_DIR" default:"./output"`
	OutputFile    string `env:"OUTPUT_FILE" default:"working"`
	OutputAddDate bool   `env:"OUTPUT_ADD_DATE" default:"false"`

	// Probing
	TestURL              string   `env:"TEST_URL" default:"https://www.gstatic.com/generate_204"`
	TestURLs             []string `env:"TEST_URLS"`
	TestURLsHTTPS        []string `env:"TEST_URLS_HTTPS"`
	RequireHTTPS         bool     `env:"REQUIRE_HTTPS" default:"false"`
	RequestsPerURL       int      `env:"REQUESTS_PER_URL" default:"1"`
	MinSuccessfulReqs    int      `env:"MIN_SUCCESSFUL_REQUESTS" default:"1"`
	MinSuccessfulURLs    int      `env:"MIN_SUCCESSFUL_URLS" default:"1"`
	RequestDelay         float64  `env:"REQUEST_DELAY" default:"0"`
	ConnectTimeout       float64  `env:"CONNECT_TIMEOUT" default:"5"`
	ConnectTimeoutSlow   float64  `env:"CONNECT_TIMEOUT_SLOW" default:"10"`
	UseAdaptiveTimeout   bool     `env:"USE_ADAPTIVE_TIMEOUT" default:"false"`
	MaxRetries           int      `env:"MAX_RETRIES" default:"2"`
	RetryDelayBase       float64  `env:"RETRY_DELAY_BASE" default:"0.5"`
	RetryDelayMultiplier float64  `env:"RETRY_DELAY_MULTIPLIER" default:"2"`
	MaxResponseTime      float64  `env:"MAX_RESPONSE_TIME" default:"0"`
	MinResponseSize      int      `env:"MIN_RESPONSE_SIZE" default:"0"`
	MinAvgResponseTime   float64  `env:"MIN_AVG_RESPONSE_TIME" default:"0"`
	VerifyHTTPSSSL       bool     `env:"VERIFY_HTTPS_SSL" default:"false"`
	MaxLatencyMS         int      `env:"MAX_LATENCY_MS" default:"0"`
	StabilityChecks      int      `env:"STABILITY_CHECKS" default:"1"`
	StabilityCheckDelay  float64  `env:"STABILITY_CHECK_DELAY" default:"0"`
	StrictMode           bool     `env:"STRICT_MODE" default:"false"`
	StrictModeRequireAll bool     `env:"STRICT_MODE_REQUIRE_ALL" default:"false"`
	StrongStyleTest      bool     `env:"STRONG_STYLE_TEST" default:"false"`
	StrongStyleTimeout   float64  `env:"STRONG_STYLE_TIMEOUT" default:"10"`
	StrongMaxResponseTime float64 `env:"STRONG_MAX_RESPONSE_TIME" default:"0"`
	StrongAttempts       int      `env:"STRONG_ATTEMPTS" default:"3"`
	TestPostRequests     bool     `env:"TEST_POST_REQUESTS" default:"false"`
	TLSFingerprint       string   `env:"TLS_FINGERPRINT" default:"none"`

	// Geo
	CheckGeolocation  bool     `env:"CHECK_GEOLOCATION" default:"false"`
	GeolocationService string  `env:"GEOLOCATION_SERVICE" default:"http://ip-api.com/json"`
	AllowedCountries  []string `env:"ALLOWED_COUNTRIES"`

	// Execution
	MaxWorkers             int    `env:"MAX_WORKERS" default:"120"`
	BasePort               int    `env:"BASE_PORT" default:"20000"`
	XrayStartupWait        float64 `env:"XRAY_STARTUP_WAIT" default:"3"`
	XrayStartupPollInterval float64 `env:"XRAY_STARTUP_POLL_INTERVAL" default:"0.1"`
	XrayPath               string `env:"XRAY_PATH"`
	XrayDirName            string `env:"XRAY_DIR_NAME" default:"./xray-bin"`

	// Caching
	EnableCache bool   `env:"ENABLE_CACHE" default:"true"`
	CacheTTL    int    `env:"CACHE_TTL" default:"3600"`
	CacheFile   string `env:"CACHE_FILE" default:"./output/.cache.json"`

	// Export
	ExportFormat string `env:"EXPORT_FORMAT" default:"txt"`
	ExportDir    string `env:"EXPORT_DIR" default:"./output"`

	// Metrics dump (supplemental, §4 of SPEC_FULL.md)
	EnableMetricsDump bool   `env:"ENABLE_METRICS_DUMP" default:"false"`
	MetricsFile       string `env:"METRICS_FILE" default:"./output/metrics.prom"`

	// Dashboard (supplemental)
	EnableDashboard bool `env:"ENABLE_DASHBOARD" default:"false"`
	DashboardPort   int  `env:"DASHBOARD_PORT" default:"8080"`

	// Speed test
	SpeedTestRequests           int     `env:"SPEED_TEST_REQUESTS" default:"3"`
	SpeedTestTimeout             float64 `env:"SPEED_TEST_TIMEOUT" default:"10"`
	SpeedTestURL                 string  `env:"SPEED_TEST_URL" default:"https://www.gstatic.com/generate_204"`
	SpeedTestDownloadURLSmall     string  `env:"SPEED_TEST_DOWNLOAD_URL_SMALL" default:"https://speed.cloudflare.com/__down?bytes=1000000"`
	SpeedTestDownloadURLMedium    string  `env:"SPEED_TEST_DOWNLOAD_URL_MEDIUM" default:"https://speed.cloudflare.com/__down?bytes=10000000"`
	SpeedTestDownloadTimeout      float64 `env:"SPEED_TEST_DOWNLOAD_TIMEOUT" default:"0"`
	MinSpeedThresholdMbps         float64 `env:"MIN_SPEED_THRESHOLD_MBPS" default:"0"`
}

// Default returns a Settings filled by Load: environment values where
// set, tag defaults otherwise — convenient for tests.
func Default() *Settings {
	s := &Settings{}
	_ = Load(s)
	return s
}
