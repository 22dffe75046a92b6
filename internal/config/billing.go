package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BillingConfig carries the tax and currency settings applied when invoice
// totals are computed. It is read as a snapshot at computation time, never
// baked into stored invoices, so a runtime change affects the next
// computation only.
type BillingConfig struct {
	VATRate          decimal.Decimal
	Currency         string
	MinorUnits       int32
	InvoicePrefix    string
	CreditNotePrefix string
	PaymentTermsDays int
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		VATRate:          decimal.RequireFromString("0.17"),
		Currency:         "ILS",
		MinorUnits:       2,
		InvoicePrefix:    "INV",
		CreditNotePrefix: "CRN",
		PaymentTermsDays: 30,
	}
}

// rawBillingConfig is the yaml/env shape; the VAT rate travels as a string
// so it never passes through a float.
type rawBillingConfig struct {
	VATRate          string `mapstructure:"vatRate"`
	Currency         string `mapstructure:"currency"`
	MinorUnits       int32  `mapstructure:"minorUnits"`
	InvoicePrefix    string `mapstructure:"invoicePrefix"`
	CreditNotePrefix string `mapstructure:"creditNotePrefix"`
	PaymentTermsDays int    `mapstructure:"paymentTermsDays"`
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/faktur/config") // Volume-mounted config
	v.AddConfigPath("/etc/faktur")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("FAKTUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.vatRate", defaults.VATRate.String())
		v.SetDefault("billing.currency", defaults.Currency)
		v.SetDefault("billing.minorUnits", defaults.MinorUnits)
		v.SetDefault("billing.invoicePrefix", defaults.InvoicePrefix)
		v.SetDefault("billing.creditNotePrefix", defaults.CreditNotePrefix)
		v.SetDefault("billing.paymentTermsDays", defaults.PaymentTermsDays)
	}

	cfg, err := unmarshalBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalBillingConfig(v)
		if err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticBillingConfig returns a holder pinned to cfg. Tests use it to pass
// explicit billing settings without touching the filesystem.
func StaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func unmarshalBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var raw rawBillingConfig
	if err := v.UnmarshalKey("billing", &raw); err != nil {
		return BillingConfig{}, err
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(raw.VATRate))
	if err != nil {
		return BillingConfig{}, errors.New("billing.vatRate must be a decimal fraction")
	}

	cfg := BillingConfig{
		VATRate:          rate,
		Currency:         strings.ToUpper(strings.TrimSpace(raw.Currency)),
		MinorUnits:       raw.MinorUnits,
		InvoicePrefix:    strings.TrimSpace(raw.InvoicePrefix),
		CreditNotePrefix: strings.TrimSpace(raw.CreditNotePrefix),
		PaymentTermsDays: raw.PaymentTermsDays,
	}
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.VATRate.IsNegative() || cfg.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("billing.vatRate must be in [0, 1)")
	}
	if cfg.Currency == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.MinorUnits < 0 || cfg.MinorUnits > 4 {
		return errors.New("billing.minorUnits out of range")
	}
	if cfg.InvoicePrefix == "" || cfg.CreditNotePrefix == "" {
		return errors.New("billing serial prefixes cannot be empty")
	}
	return nil
}
