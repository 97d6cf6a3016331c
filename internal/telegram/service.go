package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"rsc.io/qr"

	"tgops/internal/domain"
)

type AuthStatus struct {
	Authorized  bool
	UserID      int64
	UserDisplay string
}

type ServiceOptions struct {
	// Storage overrides the in-memory StringSession seeded from
	// Credentials.Session.
	Storage       session.Storage
	PeerStore     PeerStore
	PeerCacheSize int
	UploadWorkers int
	Logger        *slog.Logger
	// Transport receives gotd's own diagnostics. Nil discards them.
	Transport *zap.Logger
}

// LoginPrompts supplies interactive input for Login. Code is required;
// Password is asked only for accounts with two-step verification when the
// credentials carry no password.
type LoginPrompts struct {
	Code     func(ctx context.Context, phone string) (string, error)
	Password func(ctx context.Context) (string, error)
}

// Service owns one session. Every call to Run, Login or AuthStatus
// connects, runs and disconnects; calls are serialized.
type Service struct {
	creds   domain.Credentials
	storage session.Storage
	opts    ServiceOptions
	log     *slog.Logger

	runMu sync.Mutex
}

func NewService(creds domain.Credentials, opts ServiceOptions) (*Service, error) {
	creds.APIHash = strings.TrimSpace(creds.APIHash)
	if creds.APIID <= 0 || creds.APIHash == "" {
		return nil, ErrNotConfigured
	}
	storage := opts.Storage
	if storage == nil {
		storage = NewStringSession(creds.Session)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Transport == nil {
		opts.Transport = zap.NewNop()
	}
	return &Service{creds: creds, storage: storage, opts: opts, log: log}, nil
}

// SessionString returns the current session in its printable form.
func (s *Service) SessionString(ctx context.Context) (string, error) {
	if str, ok := s.storage.(*StringSession); ok {
		return str.String(), nil
	}
	data, err := s.storage.LoadSession(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return EncodeSession(data)
}

func (s *Service) AuthStatus(ctx context.Context) (AuthStatus, error) {
	var status AuthStatus
	err := s.withClient(ctx, nil, func(runCtx context.Context, client *tdtelegram.Client) error {
		current, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		status = authStatusOf(current)
		return nil
	})
	return status, err
}

// Login signs in with a phone code, falling back to the two-step password.
func (s *Service) Login(ctx context.Context, prompts LoginPrompts) (AuthStatus, error) {
	phone := strings.TrimSpace(s.creds.Phone)
	if phone == "" {
		return AuthStatus{}, errors.New("telegram phone is required")
	}
	if prompts.Code == nil {
		return AuthStatus{}, errors.New("login code prompt is required")
	}

	var status AuthStatus
	err := s.withClient(ctx, nil, func(runCtx context.Context, client *tdtelegram.Client) error {
		current, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		if !current.Authorized {
			if err := s.signIn(runCtx, client, phone, prompts); err != nil {
				return err
			}
			if current, err = client.Auth().Status(runCtx); err != nil {
				return err
			}
		}
		status = authStatusOf(current)
		return nil
	})
	if err != nil {
		return AuthStatus{}, err
	}
	return status, nil
}

func (s *Service) signIn(ctx context.Context, client *tdtelegram.Client, phone string, prompts LoginPrompts) error {
	sentCode, err := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return errors.Wrap(err, "send code")
	}
	var hash string
	switch sent := sentCode.(type) {
	case *tg.AuthSentCode:
		hash = sent.PhoneCodeHash
	case *tg.AuthSentCodeSuccess:
		return nil
	default:
		return errors.Errorf("unexpected send code result type: %T", sentCode)
	}

	code, err := prompts.Code(ctx, phone)
	if err != nil {
		return errors.Wrap(err, "read code")
	}
	_, err = client.Auth().SignIn(ctx, phone, strings.TrimSpace(code), hash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return s.checkPassword(ctx, client, prompts.Password)
	}
	return err
}

func (s *Service) checkPassword(ctx context.Context, client *tdtelegram.Client, ask func(context.Context) (string, error)) error {
	password := s.creds.Password
	if password == "" {
		if ask == nil {
			return ErrPasswordNeeded
		}
		var err error
		if password, err = ask(ctx); err != nil {
			return errors.Wrap(err, "read password")
		}
	}
	if _, err := client.Auth().Password(ctx, password); err != nil {
		return errors.Wrap(err, "check password")
	}
	return nil
}

// QRLogin signs in by scanning a login token from another device. showQR
// is called for every fresh token and once with PasswordNeeded set when
// the account also needs its two-step password.
func (s *Service) QRLogin(ctx context.Context, showQR func(domain.TelegramQRToken) error, askPassword func(context.Context) (string, error)) (AuthStatus, error) {
	dispatcher := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(dispatcher)

	var status AuthStatus
	err := s.withClient(ctx, dispatcher, func(runCtx context.Context, client *tdtelegram.Client) error {
		current, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		if current.Authorized {
			status = authStatusOf(current)
			return nil
		}

		_, authErr := client.QR().Auth(runCtx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			code, err := qr.Encode(token.URL(), qr.M)
			if err != nil {
				return err
			}
			return showQR(domain.TelegramQRToken{
				URL:       token.URL(),
				PNG:       code.PNG(),
				ExpiresAt: token.Expires(),
			})
		})
		if authErr != nil {
			if !isPasswordNeeded(authErr) {
				return authErr
			}
			if err := showQR(domain.TelegramQRToken{PasswordNeeded: true}); err != nil {
				return err
			}
			if err := s.checkPassword(runCtx, client, askPassword); err != nil {
				return err
			}
		}

		if current, err = client.Auth().Status(runCtx); err != nil {
			return err
		}
		status = authStatusOf(current)
		return nil
	})
	if err != nil {
		return AuthStatus{}, err
	}
	return status, nil
}

func isPasswordNeeded(err error) bool {
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return true
	}
	return tgerr.Is(err, "SESSION_PASSWORD_NEEDED")
}

// Run connects, checks authorization and calls fn with a Client bound to
// the session. The connection is released when fn returns.
func (s *Service) Run(ctx context.Context, fn func(context.Context, *Client) error) error {
	return s.withClient(ctx, nil, func(runCtx context.Context, client *tdtelegram.Client) error {
		current, err := client.Auth().Status(runCtx)
		if err != nil {
			return transportError("auth status", err)
		}
		if !current.Authorized {
			return newError(KindUnauthorized, ErrUnauthorized, "session is not logged in")
		}
		var account int64
		if current.User != nil {
			account = current.User.ID
		}
		cache := NewPeerCache(s.opts.PeerCacheSize, s.opts.PeerStore, account, s.log.With("component", "peer-cache"))
		return fn(runCtx, NewClient(client, ClientOptions{
			PeerCache:     cache,
			UploadWorkers: s.opts.UploadWorkers,
			Logger:        s.log,
		}))
	})
}

func (s *Service) withClient(ctx context.Context, updates tdtelegram.UpdateHandler, fn func(context.Context, *tdtelegram.Client) error) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	opts := tdtelegram.Options{
		SessionStorage: s.storage,
		Logger:         s.opts.Transport,
		Middlewares: []tdtelegram.Middleware{
			traceMiddleware(s.log.With("component", "rpc"), time.Now),
		},
	}
	if updates != nil {
		opts.UpdateHandler = updates
	}
	client := tdtelegram.NewClient(s.creds.APIID, s.creds.APIHash, opts)
	return client.Run(ctx, func(runCtx context.Context) error {
		return fn(runCtx, client)
	})
}

func authStatusOf(status *auth.Status) AuthStatus {
	out := AuthStatus{Authorized: status.Authorized}
	if status.User != nil {
		out.UserID = status.User.ID
		out.UserDisplay = formatUserDisplay(status.User)
	}
	return out
}

func formatUserDisplay(user *tg.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(strings.Join([]string{user.FirstName, user.LastName}, " "))
	if name != "" {
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return fmt.Sprintf("User %d", user.ID)
}
