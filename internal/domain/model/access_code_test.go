//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"streamgate/internal/domain"
)

func TestNewAccessCode(t *testing.T) {
	now := time.Now().UTC()

	t.Run("should create a code expiring after the duration", func(t *testing.T) {
		code, err := NewAccessCode("id-1", "ABCD-EFGH-JKLM", "", 60, false, nil, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got, want := code.ExpiresAt, now.Add(60*time.Minute); !got.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", got, want)
		}
		if code.Status(now) != CodeStatusActive {
			t.Errorf("new code status = %s, want active", code.Status(now))
		}
	})

	t.Run("should reject durations outside the allowed range", func(t *testing.T) {
		for _, minutes := range []int{0, -5, MaxDurationMinutes + 1} {
			if _, err := NewAccessCode("id", "CODE", "", minutes, false, nil, now); !errors.Is(err, domain.ErrInvalidDuration) {
				t.Errorf("duration %d: got %v, want ErrInvalidDuration", minutes, err)
			}
		}
	})

	t.Run("should accept the duration bounds", func(t *testing.T) {
		for _, minutes := range []int{MinDurationMinutes, MaxDurationMinutes} {
			if _, err := NewAccessCode("id", "CODE", "", minutes, false, nil, now); err != nil {
				t.Errorf("duration %d: unexpected error %v", minutes, err)
			}
		}
	})

	t.Run("should reject a non-positive usage ceiling", func(t *testing.T) {
		zero := 0
		if _, err := NewAccessCode("id", "CODE", "", 60, false, &zero, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestAccessCodeStatus(t *testing.T) {
	now := time.Now().UTC()
	three := 3

	base := func() *AccessCode {
		c, _ := NewAccessCode("id", "CODE", "", 60, false, nil, now)
		return c
	}

	t.Run("revocation wins over every other state", func(t *testing.T) {
		c := base()
		c.Revoked = true
		c.CurrentUses = 5
		c.ExpiresAt = now.Add(-time.Minute)
		if c.Status(now) != CodeStatusRevoked {
			t.Errorf("status = %s, want revoked", c.Status(now))
		}
	})

	t.Run("time expiry wins over usage exhaustion", func(t *testing.T) {
		c := base()
		c.AutoExpireOnUse = true
		c.CurrentUses = 1
		c.ExpiresAt = now.Add(-time.Minute)
		if c.Status(now) != CodeStatusExpired {
			t.Errorf("status = %s, want expired", c.Status(now))
		}
	})

	t.Run("single-use code reads used after one redemption", func(t *testing.T) {
		c := base()
		c.AutoExpireOnUse = true
		c.CurrentUses = 1
		if c.Status(now) != CodeStatusUsed {
			t.Errorf("status = %s, want used", c.Status(now))
		}
		if c.Consumable(now) {
			t.Error("used code must not be consumable")
		}
	})

	t.Run("usage ceiling marks the code exhausted", func(t *testing.T) {
		c := base()
		c.MaxUses = &three
		c.CurrentUses = 3
		if c.Status(now) != CodeStatusExhausted {
			t.Errorf("status = %s, want exhausted", c.Status(now))
		}
		c.CurrentUses = 2
		if c.Status(now) != CodeStatusActive {
			t.Errorf("status below ceiling = %s, want active", c.Status(now))
		}
	})

	t.Run("exact expiry instant is already expired", func(t *testing.T) {
		c := base()
		if c.Status(c.ExpiresAt) != CodeStatusExpired {
			t.Errorf("status at ExpiresAt = %s, want expired", c.Status(c.ExpiresAt))
		}
	})
}

func TestAccessCodeDenialError(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name  string
		setup func(c *AccessCode)
		want  error
	}{
		{"active code has no denial", func(c *AccessCode) {}, nil},
		{"revoked maps to expired", func(c *AccessCode) { c.Revoked = true }, domain.ErrCodeExpired},
		{"past expiry maps to expired", func(c *AccessCode) { c.ExpiresAt = now.Add(-time.Second) }, domain.ErrCodeExpired},
		{"redeemed single-use maps to already used", func(c *AccessCode) {
			c.AutoExpireOnUse = true
			c.CurrentUses = 1
		}, domain.ErrCodeAlreadyUsed},
		{"exhausted ceiling maps to limit reached", func(c *AccessCode) {
			two := 2
			c.MaxUses = &two
			c.CurrentUses = 2
		}, domain.ErrUsageLimitReached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := NewAccessCode("id", "CODE", "", 60, false, nil, now)
			tc.setup(c)
			got := c.DenialError(now)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("denial = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Errorf("denial = %v, want %v", got, tc.want)
			}
		})
	}
}
