package config

import (
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// LogOptions annotate a reported error with a message and searchable tags,
// for example the day or measurement uid a worker was processing.
type LogOptions struct {
	Tags map[string]string
	Msg  string
}

// ErrLogger reports failures that should survive the process: quarantined
// measurements, worker aborts, persistence errors. Implementations fan the
// error out to their destination.
type ErrLogger interface {
	Log(err error, opts LogOptions)
}

// SentryHub owns the sentry client; per-component loggers are derived from it
// with their own tag scope.
type SentryHub struct {
	client *sentry.Client
}

func NewSentryHub(conf config) (*SentryHub, error) {
	c, err := sentry.NewClient(sentry.ClientOptions{Dsn: conf.Sentry.Dsn})
	if err != nil {
		return nil, err
	}
	return &SentryHub{client: c}, nil
}

// GetLogger derives an error logger whose reports all carry the given tags.
func (hub *SentryHub) GetLogger(tags map[string]string) ErrLogger {
	scope := sentry.NewScope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	return &sentryLogger{h: sentry.NewHub(hub.client, scope)}
}

type sentryLogger struct {
	h *sentry.Hub
}

func (l *sentryLogger) Log(err error, opts LogOptions) {
	scope := l.h.PushScope()
	defer l.h.PopScope()

	for k, v := range opts.Tags {
		scope.SetTag(k, v)
	}
	if opts.Msg != "" {
		scope.SetExtra("msg", opts.Msg)
	}
	l.h.CaptureException(err)
}

type zeroLogger struct {
	l zerolog.Logger
}

// NewZeroLogger builds an error logger that writes structured lines to
// stderr, stamped with the given tags.
func NewZeroLogger(tags map[string]string) ErrLogger {
	ctx := zerolog.New(os.Stderr).With().Timestamp()
	for k, v := range tags {
		ctx = ctx.Str(k, v)
	}
	return &zeroLogger{l: ctx.Logger()}
}

func (l *zeroLogger) Log(err error, opts LogOptions) {
	ev := l.l.Err(err)
	for k, v := range opts.Tags {
		ev = ev.Str(k, v)
	}
	ev.Msg(opts.Msg)
}

// errLogChain fans a report out to every registered logger, so an error ends
// up both in the local log and in sentry when that is enabled.
type errLogChain struct {
	loggers []ErrLogger
}

func NewErrLogChain(loggers ...ErrLogger) *errLogChain {
	return &errLogChain{loggers: loggers}
}

func (chain *errLogChain) Add(el ErrLogger) {
	chain.loggers = append(chain.loggers, el)
}

func (chain *errLogChain) Log(err error, opts LogOptions) {
	for _, l := range chain.loggers {
		l.Log(err, opts)
	}
}
