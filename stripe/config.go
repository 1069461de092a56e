package stripe

import (
	"fmt"
	"strings"
)

const (
	// DefaultCurrency is the currency used for every payment intent.
	DefaultCurrency = "eur"
	// DefaultLocale is the preferred locale set on the customers.
	DefaultLocale = "fr"
	// PhaseIterations is the number of billing cycles of each phase of an
	// engagement schedule.
	PhaseIterations = 3
)

// Tier pairs the discounted price offered during the engagement period with
// the standard price the subscription reverts to afterwards.
type Tier struct {
	Name            string `yaml:"name" json:"name"`
	EngagementPrice string `yaml:"engagement_price" json:"engagement_price"`
	StandardPrice   string `yaml:"standard_price" json:"standard_price"`
}

// Config holds the Stripe configuration of the service.
type Config struct {
	APIKey          string `yaml:"api_key" json:"api_key"`
	Currency        string `yaml:"currency" json:"currency"`
	Locale          string `yaml:"locale" json:"locale"`
	PortalReturnURL string `yaml:"portal_return_url" json:"portal_return_url"`
	Tiers           []Tier `yaml:"tiers" json:"tiers"`
}

// NewConfig creates a validated configuration. The tiers are provided in
// the "name:engagementPrice:standardPrice" format.
func NewConfig(apiKey string, rawTiers []string) (*Config, error) {
	tiers, err := ParseTiers(rawTiers)
	if err != nil {
		return nil, err
	}
	conf := &Config{
		APIKey:   apiKey,
		Currency: DefaultCurrency,
		Locale:   DefaultLocale,
		Tiers:    tiers,
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ParseTiers parses a list of "name:engagementPrice:standardPrice" entries.
func ParseTiers(raw []string) ([]Tier, error) {
	tiers := make([]Tier, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid tier %q, expected name:engagementPrice:standardPrice", entry)
		}
		tiers = append(tiers, Tier{
			Name:            strings.TrimSpace(parts[0]),
			EngagementPrice: strings.TrimSpace(parts[1]),
			StandardPrice:   strings.TrimSpace(parts[2]),
		})
	}
	return tiers, nil
}

// Validate checks that the API key is set and that the tier table is
// consistent: every field set, prices look like Stripe price ids and no
// engagement price is used twice or doubles as a standard price.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrInvalidConfiguration.With("api key is required")
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	names := map[string]bool{}
	engagement := map[string]bool{}
	standard := map[string]bool{}
	for _, t := range c.Tiers {
		if t.Name == "" || t.EngagementPrice == "" || t.StandardPrice == "" {
			return ErrInvalidConfiguration.With(fmt.Sprintf("incomplete tier %+v", t))
		}
		if !strings.HasPrefix(t.EngagementPrice, "price_") || !strings.HasPrefix(t.StandardPrice, "price_") {
			return ErrInvalidConfiguration.With(fmt.Sprintf("tier %s: prices must be stripe price ids", t.Name))
		}
		if t.EngagementPrice == t.StandardPrice {
			return ErrInvalidConfiguration.With(fmt.Sprintf("tier %s: engagement and standard price are equal", t.Name))
		}
		if names[t.Name] {
			return ErrInvalidConfiguration.With(fmt.Sprintf("duplicated tier %s", t.Name))
		}
		if engagement[t.EngagementPrice] {
			return ErrInvalidConfiguration.With(fmt.Sprintf("engagement price %s used by more than one tier", t.EngagementPrice))
		}
		names[t.Name] = true
		engagement[t.EngagementPrice] = true
		standard[t.StandardPrice] = true
	}
	for price := range engagement {
		if standard[price] {
			return ErrInvalidConfiguration.With(fmt.Sprintf("price %s is both an engagement and a standard price", price))
		}
	}
	return nil
}

// TierByEngagementPrice returns the tier whose engagement price matches the
// provided price id.
func (c *Config) TierByEngagementPrice(priceID string) (Tier, bool) {
	for _, t := range c.Tiers {
		if t.EngagementPrice == priceID {
			return t, true
		}
	}
	return Tier{}, false
}
