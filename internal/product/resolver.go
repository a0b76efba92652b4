// Package product maps a tenant and payment onto the line-item title and
// product code placed on an issued receipt.
package product

import (
	"strconv"

	"fiscal-service/internal/domain"
)

// Config drives title resolution. Titles holds per-tenant overrides keyed
// by the company tax id; DefaultTitle covers everyone else.
type Config struct {
	Titles       map[string]string
	DefaultTitle string
}

// DefaultConfig returns the production title table.
func DefaultConfig() Config {
	return Config{
		Titles: map[string]string{
			"3182511027": "Інформаційно-консультаційні послуги",
			"2711813637": "Послуги з ремонту електронної апаратури",
		},
		DefaultTitle: "Оплата за товар",
	}
}

type Resolver struct {
	titles       map[string]string
	defaultTitle string
}

func New(cfg Config) *Resolver {
	return &Resolver{titles: cfg.Titles, defaultTitle: cfg.DefaultTitle}
}

// Title returns the line-item description for the receipt. A tenant with a
// configured tax id gets its fixed title; everyone else gets the default.
// The payment's own description is deliberately not used: an earlier
// behavior fell back to it, the current one always returns the configured
// default so receipts stay uniform per tenant.
func (r *Resolver) Title(company *domain.Company, _ *domain.Payment) string {
	if company != nil {
		if t, ok := r.titles[company.TaxID]; ok {
			return t
		}
	}
	return r.defaultTitle
}

// Code returns the product code for the receipt line: the payment's own id.
func (r *Resolver) Code(payment *domain.Payment) string {
	if payment == nil {
		return ""
	}
	return strconv.FormatInt(payment.ID, 10)
}
