package labbcat

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// PasswordPrompt asks the user for credentials after the server refuses
// access. It is called repeatedly until the server accepts the credentials
// or the prompt returns an error.
type PasswordPrompt func(username string) (user, password string, err error)

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	username   string
	password   string
	language   string
	userAgent  string
	timeout    time.Duration
	retries    int
	prompt     PasswordPrompt
	logger     zerolog.Logger
	transport  http.RoundTripper
	pollFloor  time.Duration
	minVersion string
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		language:   defaultLanguage(),
		userAgent:  "labbcat-go/" + Version,
		timeout:    3 * time.Minute,
		retries:    2,
		logger:     zerolog.Nop(),
		pollFloor:  2 * time.Second,
		minVersion: MinimumServerVersion,
	}
}

// WithCredentials sets the username and password used if the server
// requires HTTP Basic authentication.
func WithCredentials(username, password string) ClientOption {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithPasswordPrompt enables interactive login: if the server refuses the
// configured credentials, prompt is asked for new ones.
func WithPasswordPrompt(prompt PasswordPrompt) ClientOption {
	return func(c *clientConfig) {
		c.prompt = prompt
	}
}

// WithLanguage sets the Accept-Language header, for localized server messages.
func WithLanguage(language string) ClientOption {
	return func(c *clientConfig) {
		c.language = language
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = userAgent
	}
}

// WithTimeout sets the HTTP client timeout for a single request.
// Zero means no timeout, which suits large uploads.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets how many times idempotent GET requests are retried after
// a transient failure.
func WithRetries(retries int) ClientOption {
	return func(c *clientConfig) {
		c.retries = retries
	}
}

// WithLogger sets the logger for request tracing and non-fatal problems.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithTransport sets the underlying HTTP transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.transport = transport
	}
}

// WithDefaultPollInterval sets the interval used between task status polls
// when the server does not suggest one.
func WithDefaultPollInterval(interval time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.pollFloor = interval
	}
}

// WithMinimumServerVersion overrides MinimumServerVersion.
func WithMinimumServerVersion(version string) ClientOption {
	return func(c *clientConfig) {
		c.minVersion = version
	}
}

// Page selects one page of a long result list. Pages are numbered from 0.
type Page struct {
	Length int
	Number int
}

// Interval is a start/end pair of offsets, in seconds.
type Interval struct {
	Start float64
	End   float64
}

// SearchOption configures a Search call.
type SearchOption func(*searchOptions)

// searchOptions holds options for a search.
type searchOptions struct {
	participantIDs       []string
	transcriptTypes      []string
	mainParticipantOnly  bool
	alignedWordsOnly     bool
	matchesPerTranscript *int
	overlapThreshold     *int
}

// WithParticipants restricts the search to the given participants.
func WithParticipants(ids ...string) SearchOption {
	return func(o *searchOptions) {
		o.participantIDs = append(o.participantIDs, ids...)
	}
}

// WithTranscriptTypes restricts the search to transcripts of the given types.
func WithTranscriptTypes(types ...string) SearchOption {
	return func(o *searchOptions) {
		o.transcriptTypes = append(o.transcriptTypes, types...)
	}
}

// WithMainParticipantOnly restricts matches to the main participant of each transcript.
func WithMainParticipantOnly() SearchOption {
	return func(o *searchOptions) {
		o.mainParticipantOnly = true
	}
}

// WithAlignedWordsOnly restricts matches to words that have been aligned.
func WithAlignedWordsOnly() SearchOption {
	return func(o *searchOptions) {
		o.alignedWordsOnly = true
	}
}

// WithMatchesPerTranscript limits the number of matches returned per transcript.
func WithMatchesPerTranscript(n int) SearchOption {
	return func(o *searchOptions) {
		o.matchesPerTranscript = &n
	}
}

// WithOverlapThreshold excludes utterances overlapping others by more than
// the given percentage.
func WithOverlapThreshold(percent int) SearchOption {
	return func(o *searchOptions) {
		o.overlapThreshold = &percent
	}
}

// WaitOption configures a WaitForTask call.
type WaitOption func(*waitOptions)

// waitOptions holds options for waiting on a task.
type waitOptions struct {
	interval time.Duration
	progress func(*TaskStatus)
}

// WithPollInterval overrides the refresh interval suggested by the server.
func WithPollInterval(interval time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.interval = interval
	}
}

// WithProgress registers a callback invoked with every polled status.
func WithProgress(fn func(*TaskStatus)) WaitOption {
	return func(o *waitOptions) {
		o.progress = fn
	}
}
