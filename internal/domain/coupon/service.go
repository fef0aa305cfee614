// internal/domain/coupon/service.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/session"
)

// Service redeems discount codes for one device session. The applied coupon is
// set only after the redemption batch commits.
type Service struct {
	store     docstore.Store
	publisher events.Publisher
	deviceID  string
	mode      session.Mode
	now       func() time.Time
	log       *logrus.Entry

	applied   *Coupon
	lastError string

	subscribers map[int]func(*Coupon)
	nextSub     int
}

// NewService creates a new coupon service
func NewService(store docstore.Store, publisher events.Publisher, deviceID string, mode session.Mode, log *logrus.Entry) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:       store,
		publisher:   publisher,
		deviceID:    deviceID,
		mode:        mode,
		now:         time.Now,
		log:         log.WithFields(logrus.Fields{"component": "coupon", "session_id": deviceID}),
		subscribers: make(map[int]func(*Coupon)),
	}
}

// SetClock replaces the time source used for validity windows
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ApplyCoupon looks up, validates and redeems code against the cart subtotal
func (s *Service) ApplyCoupon(ctx context.Context, code string, subtotal decimal.Decimal) outcome.Result {
	code = strings.TrimSpace(code)
	if code == "" || strings.Contains(code, "/") {
		return s.finish(outcome.Reject(outcome.ReasonInvalidCode, "enter a valid coupon code"))
	}
	if s.mode.IsGuest() {
		return s.finish(outcome.Reject(outcome.ReasonSignInRequired, "sign in to use a coupon"))
	}
	if s.applied != nil && s.applied.Code == code {
		return s.finish(outcome.Ok())
	}

	userID := s.mode.UserID()
	entry := s.log.WithFields(logrus.Fields{"code": code, "user_id": userID})

	// Looked-up
	c, res := s.lookup(ctx, code, entry)
	if c == nil {
		return s.finish(res)
	}

	usage, err := s.usage(ctx, code, userID)
	if err != nil {
		entry.WithError(err).Error("Failed to read coupon usage")
		return s.finish(outcome.RollBack(outcome.ReasonPersistenceFailure, "could not check this coupon, please try again"))
	}

	// Validated. This is a fast path for the user's benefit only: the counters it
	// reads may already be stale, the batch bounds below are what enforce the limits.
	now := s.now().UTC()
	if res := Validate(c, usage, subtotal, now); !res.Success {
		entry.WithField("reason", res.Reason).Debug("Coupon failed validation")
		return s.finish(res)
	}

	// Reserved + Committed
	usagePath := UsagePath(code, userID)
	ops := []docstore.Op{
		docstore.RequireOp(c.Path, "timesUsed", c.TimesUsed),
		docstore.IncrementOp(c.Path, "timesUsed", 1, limit(c.UsageLimit)),
		docstore.SetOp(c.Path, map[string]any{"lastUsedAt": now}),
		docstore.RequireOp(usagePath, "count", usage.Count),
		docstore.IncrementOp(usagePath, "count", 1, limit(c.PerUserLimit)),
		docstore.SetOp(usagePath, map[string]any{
			"code":       code,
			"userId":     userID,
			"lastUsedAt": now,
		}),
	}

	if err := s.store.RunAtomicBatch(ctx, ops); err != nil {
		res := s.batchFailure(err, c.Path, usagePath)
		entry.WithError(err).WithField("reason", res.Reason).Info("Coupon redemption rejected")
		return s.finish(res)
	}

	redeemed := *c
	redeemed.TimesUsed++
	s.applied = &redeemed
	entry.Info("Coupon redeemed")

	evt := events.CouponRedeemed{
		Code:         code,
		UserID:       userID,
		SessionID:    s.deviceID,
		DiscountType: string(c.Type),
		TimesUsed:    redeemed.TimesUsed,
		RedeemedAt:   now,
	}
	if err := s.publisher.PublishCouponRedeemed(ctx, evt); err != nil {
		entry.WithError(err).Warn("Failed to publish coupon redemption")
	}

	s.notify()
	return s.finish(outcome.Ok())
}

// RemoveCoupon clears the applied coupon. The used slot is not given back.
func (s *Service) RemoveCoupon() outcome.Result {
	if s.applied != nil {
		s.applied = nil
		s.notify()
	}
	return s.finish(outcome.Ok())
}

// AppliedCoupon returns a copy of the applied coupon, or nil
func (s *Service) AppliedCoupon() *Coupon {
	if s.applied == nil {
		return nil
	}
	c := *s.applied
	return &c
}

// Discount is the applied coupon's discount on subtotal
func (s *Service) Discount(subtotal decimal.Decimal) decimal.Decimal {
	return Discount(s.applied, subtotal)
}

// Flags returns the checkout flags of the applied coupon
func (s *Service) Flags() Flags {
	return FlagsOf(s.applied)
}

// LastError returns the message of the last failed redemption
func (s *Service) LastError() string {
	return s.lastError
}

// Subscribe registers fn to receive the applied coupon after it changes
func (s *Service) Subscribe(fn func(*Coupon)) func() {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		delete(s.subscribers, id)
	}
}

// SwitchMode changes the redeeming user; a different user loses the applied coupon
func (s *Service) SwitchMode(mode session.Mode) {
	if mode == s.mode {
		return
	}
	s.mode = mode
	if s.applied != nil {
		s.applied = nil
		s.notify()
	}
	s.lastError = ""
}

func (s *Service) lookup(ctx context.Context, code string, entry *logrus.Entry) (*Coupon, outcome.Result) {
	docs, err := s.store.QueryByField(ctx, CouponsCollection, "code", code)
	if err != nil {
		entry.WithError(err).Error("Failed to look up coupon")
		return nil, outcome.RollBack(outcome.ReasonPersistenceFailure, "could not check this coupon, please try again")
	}
	if len(docs) == 0 {
		return nil, outcome.Reject(outcome.ReasonInvalidCode, fmt.Sprintf("coupon %q does not exist", code))
	}
	if len(docs) > 1 {
		entry.WithField("matches", len(docs)).Warn("Coupon code is not unique, using the first match")
	}

	c, err := FromDocument(docs[0])
	if err != nil {
		entry.WithError(err).Error("Coupon document is malformed")
		return nil, outcome.Reject(outcome.ReasonInvalidCode, fmt.Sprintf("coupon %q cannot be used", code))
	}
	return c, outcome.Result{}
}

func (s *Service) usage(ctx context.Context, code, userID string) (*UserCouponUsage, error) {
	doc, err := s.store.GetDocument(ctx, UsagePath(code, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return &UserCouponUsage{Code: code, UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return UsageFromDocument(doc)
}

func (s *Service) batchFailure(err error, couponPath, usagePath string) outcome.Result {
	var limitErr *docstore.LimitError
	switch {
	case errors.As(err, &limitErr) && limitErr.Path == couponPath:
		return outcome.Reject(outcome.ReasonUsageLimitReached, "this coupon has reached its usage limit")
	case errors.As(err, &limitErr) && limitErr.Path == usagePath:
		return outcome.Reject(outcome.ReasonPerUserLimitReached, "you have already used this coupon the maximum number of times")
	case errors.Is(err, docstore.ErrConflict):
		return outcome.RollBack(outcome.ReasonConflict, "this coupon was just used elsewhere, please try again")
	default:
		return outcome.RollBack(outcome.ReasonPersistenceFailure, "could not apply this coupon, please try again")
	}
}

func (s *Service) finish(res outcome.Result) outcome.Result {
	if res.Success {
		s.lastError = ""
	} else {
		s.lastError = res.Error
	}
	return res
}

func (s *Service) notify() {
	c := s.AppliedCoupon()
	for _, fn := range s.subscribers {
		fn(c)
	}
}

func limit(v *int) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
