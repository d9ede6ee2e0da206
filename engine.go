package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sylvize/authcore/internal"
	internalaudit "github.com/sylvize/authcore/internal/audit"
	"github.com/sylvize/authcore/internal/rate"
	"github.com/sylvize/authcore/password"
	"github.com/sylvize/authcore/refresh"
	"github.com/sylvize/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config Config
	redis  redis.UniversalClient

	hasher  *password.Hasher
	tokens  *token.Manager
	store   *refresh.Store
	limiter *rate.Limiter

	userStore  UserStore
	mapper     IdentityMapper
	bearerOn   bool
	passwordOn bool
	externalOn bool

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	closed atomic.Bool
}

// Provisioner is the optional interface an [IdentityMapper] implements to
// support first-sight provisioning. It is only consulted when
// [ProviderConfig].ProvisionOnFirstSight is true and MapAssertion returned
// [ErrSubjectNotFound].
type Provisioner interface {
	ProvisionAssertion(ctx context.Context, assertion string) (*Identity, error)
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.audit.Close()
	if e.hasher != nil {
		e.hasher.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, cred Credential) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	identity, err := e.verifyCredential(ctx, cred)
	if err != nil {
		return nil, err
	}

	pair, tokenID, familyID, err := e.issueSession(ctx, identity)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.Subject, "", "", err, func() map[string]string {
			return map[string]string{
				"strategy": cred.Strategy.String(),
				"stage":    "session",
			}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricFamilyCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.Subject, tokenID, familyID, nil, func() map[string]string {
		return map[string]string{
			"strategy": cred.Strategy.String(),
		}
	})

	return pair, nil
}

func (e *Engine) verifyCredential(ctx context.Context, cred Credential) (*Identity, error) {
	switch cred.Strategy {
	case StrategyPassword:
		return e.verifyPassword(ctx, cred)
	case StrategyExternal:
		return e.verifyExternal(ctx, cred)
	case StrategyBearer:
		return e.verifyBearer(ctx, cred)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrStrategyNotConfigured, nil)
		return nil, ErrStrategyNotConfigured
	}
}

func (e *Engine) verifyPassword(ctx context.Context, cred Credential) (*Identity, error) {
	if !e.passwordOn {
		return nil, ErrStrategyNotConfigured
	}

	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, cred.Identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{"identifier": cred.Identifier}
			})
			return nil, ErrLoginRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record, err := e.userStore.GetPasswordRecord(ctx, cred.Identifier)
	if err != nil || record == nil {
		// Unknown identifier is indistinguishable from a wrong password.
		e.loginFailed(ctx, cred.Identifier, ip, "lookup")
		return nil, ErrInvalidCredentials
	}

	if record.Disabled {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, record.Subject, "", "", ErrSubjectDisabled, nil)
		return nil, ErrSubjectDisabled
	}

	ok, err := e.hasher.Verify(ctx, cred.Secret, record.PasswordHash)
	if err != nil || !ok {
		e.loginFailed(ctx, cred.Identifier, ip, "verify")
		return nil, ErrInvalidCredentials
	}

	if err := e.limiter.ResetLogin(ctx, cred.Identifier, ip); err != nil {
		log.Print("authcore: login limiter reset failed")
	}

	e.upgradeHashOnLogin(ctx, record, cred.Secret)

	return &Identity{
		Subject:    record.Subject,
		Attributes: record.Attributes,
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, identifier, ip, stage string) {
	if err := e.limiter.IncrementLogin(ctx, identifier, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		log.Print("authcore: login limiter increment failed")
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"stage":      stage,
		}
	})
}

// upgradeHashOnLogin re-hashes the verified secret when the stored hash
// was produced with an outdated cost. Failure never blocks the login.
func (e *Engine) upgradeHashOnLogin(ctx context.Context, record *PasswordRecord, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	stale, err := e.hasher.NeedsRehash(record.PasswordHash)
	if err != nil || !stale {
		return
	}

	newHash, err := e.hasher.Hash(ctx, secret)
	if err != nil {
		log.Print("authcore: password hash upgrade generation failed")
		return
	}

	if err := e.userStore.SavePasswordRecord(ctx, record.Subject, newHash); err != nil {
		log.Print("authcore: password hash upgrade update failed")
		return
	}

	e.metricInc(MetricHashUpgraded)
	e.emitAudit(ctx, auditEventHashUpgraded, true, record.Subject, "", "", nil, nil)
}

func (e *Engine) verifyExternal(ctx context.Context, cred Credential) (*Identity, error) {
	if !e.externalOn {
		return nil, ErrStrategyNotConfigured
	}
	if cred.Assertion == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	identity, err := e.mapper.MapAssertion(ctx, cred.Assertion)
	if err == nil && identity != nil {
		return identity, nil
	}

	if errors.Is(err, ErrSubjectNotFound) {
		provisioner, ok := e.mapper.(Provisioner)
		if !e.config.Provider.ProvisionOnFirstSight || !ok {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrProvisioningDisabled, nil)
			return nil, ErrProvisioningDisabled
		}

		identity, err = provisioner.ProvisionAssertion(ctx, cred.Assertion)
		if err == nil && identity != nil {
			return identity, nil
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"strategy": "external"}
	})
	return nil, ErrInvalidCredentials
}

func (e *Engine) verifyBearer(ctx context.Context, cred Credential) (*Identity, error) {
	if !e.bearerOn {
		return nil, ErrStrategyNotConfigured
	}

	claims, err := e.tokens.Verify(cred.Token)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"strategy": "bearer"}
		})
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Subject:    claims.Subject,
		Attributes: claims.Extra,
	}, nil
}

func (e *Engine) issueSession(ctx context.Context, identity *Identity) (*TokenPair, string, string, error) {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return nil, "", "", fmt.Errorf("token id generation: %w", err)
	}
	familyID, err := internal.NewTokenID()
	if err != nil {
		return nil, "", "", fmt.Errorf("family id generation: %w", err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, "", "", fmt.Errorf("refresh secret generation: %w", err)
	}

	now := time.Now()
	rec := &refresh.Record{
		TokenID:    [16]byte(tokenID),
		FamilyID:   [16]byte(familyID),
		Status:     refresh.StatusActive,
		SecretHash: internal.HashRefreshSecret(secret),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(e.config.Refresh.TTL).Unix(),
		Subject:    identity.Subject,
		ClientID:   clientIDFromContext(ctx),
	}

	if err := e.store.Create(ctx, rec, e.config.Refresh.TTL); err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, err := e.buildTokenPair(identity, tokenID.String(), secret, now)
	if err != nil {
		return nil, "", "", err
	}

	return pair, tokenID.String(), familyID.String(), nil
}

func (e *Engine) buildTokenPair(identity *Identity, tokenID string, secret [32]byte, now time.Time) (*TokenPair, error) {
	access, err := e.tokens.Issue(identity.Subject, identity.Attributes, e.config.Token.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("access token issue: %w", err)
	}

	wire, err := internal.EncodeRefreshToken(tokenID, secret)
	if err != nil {
		return nil, fmt.Errorf("refresh token encode: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     wire,
		AccessExpiresAt:  now.Add(e.config.Token.AccessTTL),
		RefreshExpiresAt: now.Add(e.config.Refresh.TTL),
	}, nil
}

/*
====================================
REFRESH
====================================
*/

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	tokenIDStr, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	tokenID, err := internal.ParseTokenID(tokenIDStr)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	if err := e.limiter.CheckRefresh(ctx, tokenID.String()); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{"token_id": tokenID.String()}
			})
			return nil, ErrRefreshRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	newTokenID, err := internal.NewTokenID()
	if err != nil {
		return nil, fmt.Errorf("token id generation: %w", err)
	}
	newSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("refresh secret generation: %w", err)
	}

	now := time.Now()
	successor, err := e.store.Rotate(
		ctx,
		[16]byte(tokenID),
		internal.HashRefreshSecret(secret),
		[16]byte(newTokenID),
		internal.HashRefreshSecret(newSecret),
		now,
		e.config.Refresh.TTL,
	)
	if err != nil {
		return nil, e.refreshRotateFailed(ctx, tokenID.String(), err)
	}

	identity := &Identity{Subject: successor.Subject}

	pair, err := e.buildTokenPair(identity, newTokenID.String(), newSecret, now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, successor.Subject, newTokenID.String(), "", err, nil)
		return nil, err
	}

	familyID := internal.TokenID(successor.FamilyID).String()

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, successor.Subject, newTokenID.String(), familyID, nil, func() map[string]string {
		return map[string]string{
			"replaced": tokenID.String(),
		}
	})

	return pair, nil
}

func (e *Engine) refreshRotateFailed(ctx context.Context, tokenID string, err error) error {
	switch {
	case errors.Is(err, refresh.ErrTokenReused):
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricFamilyRevoked)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", tokenID, "", ErrRefreshReuse, nil)
		return ErrRefreshReuse
	case errors.Is(err, refresh.ErrRedisUnavailable):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", tokenID, "", ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		// Not-found, expired, and hash mismatch collapse to a single
		// caller-visible failure.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", tokenID, "", ErrRefreshInvalid, nil)
		return ErrRefreshInvalid
	}
}

/*
====================================
LOGOUT
====================================
*/

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	tokenIDStr, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}
	tokenID, err := internal.ParseTokenID(tokenIDStr)
	if err != nil {
		return ErrRefreshInvalid
	}

	rec, err := e.store.Get(ctx, [16]byte(tokenID))
	if err != nil {
		if errors.Is(err, refresh.ErrTokenNotFound) || errors.Is(err, refresh.ErrTokenExpired) {
			// Logging out an already gone token is not an error.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}

	if !internal.ConstantTimeHashEqual(rec.SecretHash, internal.HashRefreshSecret(secret)) {
		return ErrRefreshInvalid
	}

	if err := e.store.Revoke(ctx, [16]byte(tokenID)); err != nil {
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, rec.Subject, tokenID.String(), internal.TokenID(rec.FamilyID).String(), nil, nil)

	return nil
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if subject == "" {
		return ErrRefreshInvalid
	}

	revoked, err := e.store.RevokeAllForSubject(ctx, subject)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, subject, "", "", ErrLogoutFailed, nil)
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subject, "", "", nil, func() map[string]string {
		return map[string]string{
			"records_revoked": fmt.Sprintf("%d", revoked),
		}
	})

	return nil
}

/*
====================================
VERIFY
====================================
*/

// VerifyAccess describes the verifyaccess operation and its observable behavior.
//
// VerifyAccess may return an error when input validation, dependency calls, or security checks fail.
// VerifyAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyAccess(tokenStr string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.tokens.Verify(tokenStr)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))

	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	return &Identity{
		Subject:    claims.Subject,
		Attributes: claims.Extra,
	}, nil
}
