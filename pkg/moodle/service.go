package moodle

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tansive/moodleauth/internal/common/httpclient"
	"github.com/tansive/moodleauth/internal/common/logtrace"
	"github.com/tansive/moodleauth/pkg/phpquery"
)

const (
	// TokenPath is the token endpoint, relative to the site root.
	TokenPath = "login/token.php"
	// ServicePath is the REST endpoint, relative to the site root.
	ServicePath = "webservice/rest/server.php"
	// DefaultServiceName is the external service the token is issued for.
	DefaultServiceName = "moodle_mobile_app"

	// ParamToken carries the session token on every REST call.
	ParamToken = "wstoken"
	// ParamFormat selects the REST response format.
	ParamFormat = "moodlewsrestformat"
	// FormatJSON is the only response format the client decodes.
	FormatJSON = "json"
)

// Service connects to sites. The zero value is not usable; use NewService.
type Service struct {
	logger       zerolog.Logger
	serviceName  string
	clientConfig []httpclient.Option
	validate     *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service and its sessions.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTransportFactory sets how transport handles are created.
func WithTransportFactory(f httpclient.TransportFactory) Option {
	return func(s *Service) {
		s.clientConfig = append(s.clientConfig, httpclient.WithTransportFactory(f))
	}
}

// WithRetryDelay sets the pause taken after a transport error.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		s.clientConfig = append(s.clientConfig, httpclient.WithRetryDelay(d))
	}
}

// WithTransientErrorCodes replaces the remote error codes that are retried in place.
func WithTransientErrorCodes(codes ...string) Option {
	return func(s *Service) {
		s.clientConfig = append(s.clientConfig, httpclient.WithTransientErrorCodes(codes...))
	}
}

// WithServiceName sets the external service the token is requested for.
func WithServiceName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.serviceName = name
		}
	}
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		logger:      log.Logger,
		serviceName: DefaultServiceName,
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultService = NewService()

// Connect authenticates with the default service settings.
func Connect(ctx context.Context, site, username string, password *Password) (*Session, error) {
	return defaultService.Connect(ctx, site, username, password)
}

type connectRequest struct {
	Site     string `validate:"required"`
	Username string `validate:"required"`
}

// Connect exchanges the credentials for a token, then resolves the user and
// the site info with it. On success the returned Session owns the transport
// and must be closed by the caller. The password is not wiped.
//
// Errors match ErrInvalidArgument for unusable input or a user lookup that
// does not yield exactly one user, ErrAuthFailed when the site rejects the
// credentials, and ErrTransport or ErrRemote for everything else.
func (s *Service) Connect(ctx context.Context, site, username string, password *Password) (*Session, error) {
	if err := s.validate.Struct(connectRequest{Site: strings.TrimSpace(site), Username: username}); err != nil {
		return nil, ErrInvalidArgument.MsgErr("site and username are required", err)
	}
	base, err := NormalizeSite(site)
	if err != nil {
		return nil, err
	}
	ctx = logtrace.WithInvocationID(ctx, logtrace.InvocationID(ctx))
	logger := s.logger.With().
		Str("site", base.String()).
		Str("username", username).
		Str("invocation_id", logtrace.InvocationIDFromContext(ctx)).
		Logger()

	opts := append([]httpclient.Option{httpclient.WithLogger(s.logger)}, s.clientConfig...)
	client := httpclient.NewClient(base.ResolveReference(&url.URL{Path: TokenPath}), opts...)

	token, err := s.requestToken(ctx, client, username, password)
	if err != nil {
		_ = client.Close()
		logger.Debug().Err(err).Msg("token exchange failed")
		return nil, err
	}

	client.SetURI(base.ResolveReference(&url.URL{Path: ServicePath})).
		SetDefaultParams(phpquery.New(
			phpquery.P(ParamToken, token),
			phpquery.P(ParamFormat, FormatJSON),
		))

	user, err := lookupUser(ctx, client, username)
	if err != nil {
		_ = client.Close()
		logger.Debug().Err(err).Msg("user lookup failed")
		return nil, err
	}
	info, err := fetchSiteInfo(ctx, client)
	if err != nil {
		_ = client.Close()
		logger.Debug().Err(err).Msg("site info failed")
		return nil, err
	}

	logger.Info().Int64("user_id", user.ID).Str("site_name", info.SiteName).Msg("connected")
	return &Session{
		client: client,
		site:   base,
		user:   user,
		info:   info,
		logger: s.logger,
	}, nil
}

func (s *Service) requestToken(ctx context.Context, client *httpclient.Client, username string, password *Password) (string, error) {
	result, err := httpclient.Invoke[TokenResult](ctx, client, nil, phpquery.New(
		phpquery.P("username", username),
		phpquery.P("password", password),
		phpquery.P("service", s.serviceName),
	))
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", ErrMalformedResponse.Msg("empty token response")
	}
	if result.Failed() {
		return "", ErrAuthFailed.Msg(result.Error.OrElse(result.ErrorCode.Value))
	}
	if result.Token.String() == "" {
		return "", ErrMalformedResponse.Msg("token response carries no token")
	}
	return result.Token.Value, nil
}

// NormalizeSite turns a bare host or a URL into the site's base URI. A
// missing scheme defaults to https and the path always ends in a slash so
// endpoints resolve beneath it.
func NormalizeSite(site string) (*url.URL, error) {
	site = strings.TrimSpace(site)
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	u, err := url.Parse(site)
	if err != nil {
		return nil, ErrInvalidSite.MsgErr("unable to parse site "+strconv.Quote(site), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidSite.Msg("unsupported scheme " + strconv.Quote(u.Scheme))
	}
	if u.Host == "" {
		return nil, ErrInvalidSite.Msg("site has no host")
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u, nil
}
