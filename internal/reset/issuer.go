package reset

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const resetSubject = "Reset Password"

var (
	//go:embed templates/password_reset.html
	emailTemplates embed.FS

	passwordResetTemplate = template.Must(template.New("password_reset.html").ParseFS(emailTemplates, "templates/password_reset.html"))

	ErrDeliveryFailed = errors.New("reset notification delivery failed")
)

// Notifier delivers an HTML message to a single recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Issuer mints a reset token and dispatches the reset link.
type Issuer struct {
	store    *Store
	notifier Notifier
	cfg      Config
	logger   *zap.SugaredLogger
}

func NewIssuer(store *Store, notifier Notifier, cfg Config, logger *zap.SugaredLogger) (*Issuer, error) {
	if store == nil || notifier == nil {
		return nil, errors.New("reset issuer requires a store and a notifier")
	}
	if cfg.TTL <= 0 {
		return nil, ErrInvalidTTL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("reset base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Issuer{store: store, notifier: notifier, cfg: cfg, logger: logger}, nil
}

// Send issues a token for identifier and mails the link to `to`. When
// delivery fails the token is revoked and ErrDeliveryFailed is returned.
func (i *Issuer) Send(ctx context.Context, identifier, to string) (*entity.ResetToken, error) {
	tok, err := i.store.Issue(ctx, identifier, i.cfg.TTL)
	if err != nil {
		return nil, err
	}

	body, err := i.render(tok.Token)
	if err != nil {
		i.revoke(ctx, tok)
		return nil, oops.Code("RESET_RENDER_FAILED").With("id", tok.ID).Wrap(err)
	}

	sendCtx := ctx
	if i.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, i.cfg.NotifyTimeout)
		defer cancel()
	}
	if err := i.notifier.Send(sendCtx, to, resetSubject, body); err != nil {
		i.logger.Warnw("reset email delivery failed", "id", tok.ID, "to", utilities.MaskEmail(to), "err", err)
		i.revoke(ctx, tok)
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	i.logger.Infow("reset email sent", "id", tok.ID, "to", utilities.MaskEmail(to), "expires_at", tok.ExpiresAt)
	return tok, nil
}

// ResetLink builds <base>/reset-password?token=<token>.
func (i *Issuer) ResetLink(token string) (string, error) {
	u, err := url.Parse(i.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("reset-password")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func (i *Issuer) render(token string) (string, error) {
	link, err := i.ResetLink(token)
	if err != nil {
		return "", err
	}
	data := struct {
		Link      string
		ExpiresIn string
	}{Link: link, ExpiresIn: humanDuration(i.cfg.TTL)}

	var buf bytes.Buffer
	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render password reset template: %w", err)
	}
	return buf.String(), nil
}

func (i *Issuer) revoke(ctx context.Context, tok *entity.ResetToken) {
	if _, err := i.store.Consume(context.WithoutCancel(ctx), tok.Token); err != nil && !errors.Is(err, ErrNotFound) {
		i.logger.Warnw("revoke undelivered reset token failed", "id", tok.ID, "err", err)
	}
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
