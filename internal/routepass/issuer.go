package routepass

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/blulok/blulok-core/internal/access"
	"github.com/blulok/blulok-core/internal/device"
	"github.com/blulok/blulok-core/internal/signing"
)

// AccessResolver is the subset of the access repository the issuer needs.
type AccessResolver interface {
	Grants(ctx context.Context, userID string) ([]access.Grant, error)
}

// DeviceStore is the subset of the device repository the issuer needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*device.UserDevice, error)
}

// PassStore records issued pass metadata for later revocation decisions.
type PassStore interface {
	Record(ctx context.Context, pass *Pass) error
}

// Telemetry receives issuance events. Implementations must not block.
// A nil Telemetry disables emission.
type Telemetry interface {
	WriteRoutePassIssued(deviceID, userID string, audienceCount int)
}

// Issuer mints route passes: short-lived EdDSA JWTs a phone presents to
// lock firmware over BLE. Passes are verified offline at the lock, so
// everything firmware needs (audiences, device key, schedule) is in the
// claims.
type Issuer struct {
	signer    *signing.Signer
	access    AccessResolver
	devices   DeviceStore
	passes    PassStore
	ttl       time.Duration
	telemetry Telemetry
}

// NewIssuer creates a route pass issuer.
// ttl is the validity window applied to every pass.
func NewIssuer(signer *signing.Signer, accessResolver AccessResolver, devices DeviceStore, passes PassStore, ttl time.Duration, telemetry Telemetry) *Issuer {
	return &Issuer{
		signer:    signer,
		access:    accessResolver,
		devices:   devices,
		passes:    passes,
		ttl:       ttl,
		telemetry: telemetry,
	}
}

// Issue mints a route pass for a user's enrolled device.
//
// The device must belong to the user, be active, and have completed key
// enrolment. The audiences cover everything the user can currently open;
// a user with no access gets ErrNoAccess rather than an empty pass.
// Every invocation produces a fresh token ID, even for identical inputs.
func (i *Issuer) Issue(ctx context.Context, userID, deviceID string, schedule *Schedule) (string, *Claims, error) {
	d, err := i.devices.GetByID(ctx, deviceID)
	if err != nil {
		return "", nil, fmt.Errorf("loading device: %w", err)
	}
	if d.UserID != userID {
		return "", nil, ErrDeviceOwnership
	}
	if d.Status != device.StatusActive {
		return "", nil, fmt.Errorf("%w: status %s", ErrDeviceNotActive, d.Status)
	}
	if !d.HasPublicKey() {
		return "", nil, ErrDeviceMissingKey
	}

	grants, err := i.access.Grants(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("resolving grants: %w", err)
	}
	if len(grants) == 0 {
		return "", nil, ErrNoAccess
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   IssuerName,
			Subject:  userID,
			ID:       uuid.NewString(),
			Audience: access.Audiences(grants),
		},
		DeviceID:        deviceID,
		DevicePublicKey: d.PublicKey,
		Schedule:        schedule,
	}

	if err := claims.Validate(); err != nil {
		return "", nil, err
	}

	token, err := i.signer.SignJWT(claims, i.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("signing route pass: %w", err)
	}

	pass := &Pass{
		ID:        claims.ID,
		DeviceID:  deviceID,
		UserID:    userID,
		Audiences: claims.Audience,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := i.passes.Record(ctx, pass); err != nil {
		return "", nil, fmt.Errorf("recording pass metadata: %w", err)
	}

	if i.telemetry != nil {
		i.telemetry.WriteRoutePassIssued(deviceID, userID, len(claims.Audience))
	}

	return token, claims, nil
}

// Verify validates a route pass token and returns its claims.
// Used by operational tooling; locks verify passes in firmware.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	if err := i.signer.VerifyJWT(tokenString, &claims); err != nil {
		return nil, err
	}
	if err := claims.Validate(); err != nil {
		return nil, err
	}
	return &claims, nil
}
