package routepass

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer name stamped into every route pass. Lock firmware rejects
// tokens from any other issuer.
const IssuerName = "blulok-cloud"

// timeOfDayLayout is the HH:MM:SS format for schedule boundaries.
const timeOfDayLayout = "15:04:05"

// daysPerWeek bounds the schedule day field (0 = Sunday).
const daysPerWeek = 7

// Window is one weekly access window.
// Day is 0-6 with 0 = Sunday; Start and End are HH:MM:SS local to
// the facility.
type Window struct {
	Day   int    `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks the window's day and time boundaries.
func (w Window) Validate() error {
	if w.Day < 0 || w.Day >= daysPerWeek {
		return fmt.Errorf("%w: day %d out of range", ErrInvalidSchedule, w.Day)
	}

	start, err := time.Parse(timeOfDayLayout, w.Start)
	if err != nil {
		return fmt.Errorf("%w: start time %q: %w", ErrInvalidSchedule, w.Start, err)
	}
	end, err := time.Parse(timeOfDayLayout, w.End)
	if err != nil {
		return fmt.Errorf("%w: end time %q: %w", ErrInvalidSchedule, w.End, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start %q not before end %q", ErrInvalidSchedule, w.Start, w.End)
	}

	return nil
}

// Schedule restricts a pass to weekly time windows at one facility.
type Schedule struct {
	FacilityID string   `json:"facility_id"`
	Windows    []Window `json:"windows"`
}

// Validate checks the schedule is complete and every window well formed.
func (s *Schedule) Validate() error {
	if s.FacilityID == "" {
		return fmt.Errorf("%w: missing facility id", ErrInvalidSchedule)
	}
	if len(s.Windows) == 0 {
		return fmt.Errorf("%w: no windows", ErrInvalidSchedule)
	}
	for _, w := range s.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Claims is the payload of a route pass JWT.
//
// The subject is the user, the audiences are the grants the pass may
// exercise, and the device public key binds the pass to a single
// enrolled device: firmware challenges the phone to prove possession
// of the matching private key before actuating.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID        string    `json:"did"`
	DevicePublicKey string    `json:"dpk"`
	Schedule        *Schedule `json:"schedule,omitempty"`
}

// SetValidity stamps the issued-at and expiry timestamps at signing time.
func (c *Claims) SetValidity(issuedAt, expiresAt *jwt.NumericDate) {
	c.IssuedAt = issuedAt
	c.ExpiresAt = expiresAt
}

// Validate checks the claim set is complete and well formed.
func (c *Claims) Validate() error {
	if c.Issuer != IssuerName {
		return fmt.Errorf("%w: issuer %q", ErrInvalidClaims, c.Issuer)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: missing token id", ErrInvalidClaims)
	}
	if len(c.Audience) == 0 {
		return fmt.Errorf("%w: empty audience", ErrInvalidClaims)
	}
	if c.DeviceID == "" {
		return fmt.Errorf("%w: missing device id", ErrInvalidClaims)
	}
	if c.DevicePublicKey == "" {
		return fmt.Errorf("%w: missing device public key", ErrInvalidClaims)
	}

	if c.Schedule != nil {
		if err := c.Schedule.Validate(); err != nil {
			return err
		}
	}

	return nil
}
