// Package settings manages the shared site_settings singleton and the inline
// editors administrators use to change it.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/gateway"
)

// Field names an editable column of the site_settings singleton.
type Field string

const (
	HeroTitle      Field = "hero_title"
	HeroSubtitle   Field = "hero_subtitle"
	ShopName       Field = "shop_name"
	ContactPhone   Field = "contact_phone"
	ContactAddress Field = "contact_address"
)

// Fields lists every editable field.
var Fields = []Field{HeroTitle, HeroSubtitle, ShopName, ContactPhone, ContactAddress}

// ErrUnknownField is returned for field names outside Fields.
var ErrUnknownField = errors.New("unknown settings field")

// ParseField validates s.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// singletonID is the fixed id of the only site_settings row.
const singletonID = 1

// Settings is the site-wide text shown on every page.
type Settings struct {
	HeroTitle      string
	HeroSubtitle   string
	ShopName       string
	ContactPhone   string
	ContactAddress string
	UpdatedAt      time.Time
}

// Defaults returns the text used until an administrator saves the settings.
func Defaults() Settings {
	return Settings{
		HeroTitle:      "Everything for Student Success",
		HeroSubtitle:   "Premium school essentials with fast delivery to Chinchwad, Pune and nearby areas",
		ShopName:       "SchoolShop",
		ContactPhone:   "9309496280",
		ContactAddress: "Chinchwad, Pune",
	}
}

// Value returns the text of field f.
func (s Settings) Value(f Field) string {
	switch f {
	case HeroTitle:
		return s.HeroTitle
	case HeroSubtitle:
		return s.HeroSubtitle
	case ShopName:
		return s.ShopName
	case ContactPhone:
		return s.ContactPhone
	case ContactAddress:
		return s.ContactAddress
	default:
		return ""
	}
}

// With returns a copy of s with field f set to v.
func (s Settings) With(f Field, v string) Settings {
	switch f {
	case HeroTitle:
		s.HeroTitle = v
	case HeroSubtitle:
		s.HeroSubtitle = v
	case ShopName:
		s.ShopName = v
	case ContactPhone:
		s.ContactPhone = v
	case ContactAddress:
		s.ContactAddress = v
	}
	return s
}

// Validate checks the admin settings form: every field must be filled in.
func (s Settings) Validate() error {
	var c form.Checker
	for _, f := range Fields {
		c.Required(string(f), s.Value(f))
	}
	return c.Err()
}

func (s Settings) record() gateway.Record {
	rec := gateway.Record{"updated_at": s.UpdatedAt}
	for _, f := range Fields {
		rec[string(f)] = s.Value(f)
	}
	return rec
}

func fromRecord(rec gateway.Record) (Settings, error) {
	var s Settings
	for _, f := range Fields {
		s = s.With(f, rec.String(string(f)))
	}
	updated, err := rec.Time("updated_at")
	if err != nil {
		return Settings{}, fmt.Errorf("site settings: %w", err)
	}
	s.UpdatedAt = updated
	return s, nil
}

// Store reads and writes the singleton. Writes are last-write-wins; there is
// no concurrency token.
type Store struct {
	gw  gateway.Gateway
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for updated_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store backed by gw.
func NewStore(gw gateway.Gateway, opts ...StoreOption) *Store {
	s := &Store{gw: gw, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current settings, or Defaults when the singleton has not
// been written yet.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	recs, err := s.gw.Select(ctx, gateway.SiteSettings, gateway.Query{
		Filter: gateway.Eq("id", singletonID),
		Limit:  1,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("reading site settings: %w", err)
	}
	if len(recs) == 0 {
		return Defaults(), nil
	}
	return fromRecord(recs[0])
}

// SaveField writes a single field and stamps updated_at. It returns the new
// updated_at.
func (s *Store) SaveField(ctx context.Context, f Field, value string) (time.Time, error) {
	if _, err := ParseField(string(f)); err != nil {
		return time.Time{}, err
	}
	now := s.now().UTC()
	patch := gateway.Record{string(f): value, "updated_at": now}
	err := s.gw.Update(ctx, gateway.SiteSettings, patch, gateway.Eq("id", singletonID))
	if errors.Is(err, gateway.ErrNotFound) {
		next := Defaults().With(f, value)
		next.UpdatedAt = now
		err = s.insert(ctx, next)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("saving %s: %w", f, err)
	}
	return now, nil
}

// Save validates and writes every field at once.
func (s *Store) Save(ctx context.Context, next Settings) (Settings, error) {
	for _, f := range Fields {
		next = next.With(f, strings.TrimSpace(next.Value(f)))
	}
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	next.UpdatedAt = s.now().UTC()
	err := s.gw.Update(ctx, gateway.SiteSettings, next.record(), gateway.Eq("id", singletonID))
	if errors.Is(err, gateway.ErrNotFound) {
		err = s.insert(ctx, next)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("saving site settings: %w", err)
	}
	return next, nil
}

// EnsureDefaults writes Defaults when the singleton is missing.
func (s *Store) EnsureDefaults(ctx context.Context) error {
	recs, err := s.gw.Select(ctx, gateway.SiteSettings, gateway.Query{
		Filter: gateway.Eq("id", singletonID),
		Limit:  1,
	})
	if err != nil {
		return fmt.Errorf("reading site settings: %w", err)
	}
	if len(recs) > 0 {
		return nil
	}
	d := Defaults()
	d.UpdatedAt = s.now().UTC()
	return s.insert(ctx, d)
}

func (s *Store) insert(ctx context.Context, v Settings) error {
	rec := v.record()
	rec["id"] = singletonID
	_, err := s.gw.Insert(ctx, gateway.SiteSettings, rec)
	return err
}
