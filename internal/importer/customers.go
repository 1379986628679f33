package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var customerVocabulary = csvio.Vocabulary{
	Fields: []string{
		"name", "customer_group", "email", "phone", "zone", "siren",
		"billing_line1", "billing_line2", "billing_city", "billing_postal_code",
		"billing_country", "billing_region", "shipping_same_as_billing",
		"shipping_line1", "shipping_line2", "shipping_city",
		"shipping_postal_code", "shipping_country", "shipping_region",
	},
}

// ImportCustomers reconciles a customer CSV. The natural key is the email
// when present, falling back to the exact name. Matches are updated
// field-by-field (blank cells never clear existing data); everything else
// is created.
func (imp *Importer) ImportCustomers(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, customerVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	nameIdx := ResolveIndex(headers, []string{"name", "customer_name"}, []string{"group"})
	if nameIdx < 0 {
		return sum, imp.abort(abortf(1, "required column name not found"))
	}

	cols := columns{
		"name":                     nameIdx,
		"customer_group":           ResolveIndex(headers, []string{"customer_group", "group"}, nil),
		"email":                    ResolveIndex(headers, []string{"email", "mail"}, nil),
		"phone":                    ResolveIndex(headers, []string{"phone", "telephone"}, nil),
		"zone":                     ResolveIndex(headers, []string{"zone"}, nil),
		"siren":                    ResolveIndex(headers, []string{"siren"}, nil),
		"shipping_same_as_billing": ResolveIndex(headers, []string{"shipping_same_as_billing"}, nil),
	}
	for _, side := range []string{"billing", "shipping"} {
		for _, part := range []string{"line1", "line2", "city", "postal_code", "country", "region"} {
			key := side + "_" + part
			cols[key] = ResolveIndex(headers, []string{key}, nil)
		}
	}

	imp.start(len(rows)-1, "customers")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}
		if aerr := imp.customerRow(ctx, cols, row, line, &sum); aerr != nil {
			return sum, imp.abort(aerr)
		}
		imp.step()
	}

	return imp.finish(sum), nil
}

func (imp *Importer) customerRow(ctx context.Context, cols columns, row []string, line int, sum *Summary) *AbortError {
	name := cols.get(row, "name")
	email := strings.ToLower(cols.get(row, "email"))
	if name == "" && email == "" {
		return abortf(line, "a customer row needs at least a name or an email")
	}

	existing, err := imp.findCustomer(ctx, email, name, line)
	if err != nil {
		var aerr *AbortError
		if errors.As(err, &aerr) {
			return aerr
		}
		sum.reject(line, "lookup failed: %v", err)
		return nil
	}

	if existing != nil {
		updated := *existing
		changed := overlayCustomer(&updated, cols, row, name, email)
		if !changed {
			sum.Skipped++
			return nil
		}
		updated.UpdatedAt = time.Now().UTC()
		if _, err := imp.repo.UpdateCustomer(ctx, updated); err != nil {
			sum.reject(line, "update failed: %v", err)
			return nil
		}
		sum.Updated++
		return nil
	}

	if name == "" {
		sum.reject(line, "name is required to create a customer")
		return nil
	}
	now := time.Now().UTC()
	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	overlayCustomer(&customer, cols, row, name, email)
	if customer.ShippingSameAsBilling {
		customer.Shipping = customer.Billing
	}
	if _, err := imp.repo.CreateCustomer(ctx, customer); err != nil {
		sum.reject(line, "create failed: %v", err)
		return nil
	}
	sum.Created++
	return nil
}

// findCustomer resolves the natural key: email wins when present, exact
// name otherwise. More than one existing customer under the same name is
// ambiguous and aborts the run.
func (imp *Importer) findCustomer(ctx context.Context, email, name string, line int) (*domain.Customer, error) {
	if email != "" {
		c, err := imp.repo.FindCustomerByEmail(ctx, email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, nil
	}

	matches, err := imp.repo.FindCustomersByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		return nil, abortf(line, "%d existing customers share the name %q; de-duplicate before importing", len(matches), name)
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	return nil, nil
}

// overlayCustomer copies non-blank row cells onto the customer and reports
// whether anything differed.
func overlayCustomer(c *domain.Customer, cols columns, row []string, name, email string) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}

	set(&c.Name, name)
	set(&c.Email, email)
	set(&c.Group, cols.get(row, "customer_group"))
	set(&c.Phone, cols.get(row, "phone"))
	set(&c.Zone, cols.get(row, "zone"))
	set(&c.SIREN, cols.get(row, "siren"))

	overlayAddress(&c.Billing, cols, row, "billing", set)
	overlayAddress(&c.Shipping, cols, row, "shipping", set)

	if raw := cols.get(row, "shipping_same_as_billing"); raw != "" {
		same := parseBoolCell(raw)
		if same != c.ShippingSameAsBilling {
			c.ShippingSameAsBilling = same
			changed = true
		}
		if same {
			c.Shipping = c.Billing
		}
	}
	return changed
}

func overlayAddress(a *domain.Address, cols columns, row []string, prefix string, set func(*string, string)) {
	set(&a.Line1, cols.get(row, prefix+"_line1"))
	set(&a.Line2, cols.get(row, prefix+"_line2"))
	set(&a.City, cols.get(row, prefix+"_city"))
	set(&a.PostalCode, cols.get(row, prefix+"_postal_code"))
	set(&a.Country, cols.get(row, prefix+"_country"))
	set(&a.Region, cols.get(row, prefix+"_region"))
}
