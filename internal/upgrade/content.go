package upgrade

// Plan is the offer shown on the first step.
type Plan struct {
	Name     string
	Price    string
	Period   string
	Features []string
}

// OrderSummary is shown next to the payment form.
type OrderSummary struct {
	Item     string
	Billing  string
	Subtotal string
	Tax      string
	Total    string
}

var proPlan = Plan{
	Name:   "CaseDesk Pro",
	Price:  "$29",
	Period: "month",
	Features: []string{
		"Unlimited cases",
		"Unlimited file storage",
		"Document templates",
		"Client portal access",
		"Priority support",
		"Advanced case analytics",
	},
}

// Offer returns the Pro plan.
func Offer() Plan {
	p := proPlan
	p.Features = append([]string(nil), proPlan.Features...)
	return p
}

// Summary returns the order summary for the Pro plan.
func Summary() OrderSummary {
	return OrderSummary{
		Item:     proPlan.Name,
		Billing:  "Monthly",
		Subtotal: proPlan.Price + ".00",
		Tax:      "$0.00",
		Total:    proPlan.Price + ".00",
	}
}

// Unlocked returns the features available once upgraded.
func Unlocked() []string {
	return append([]string(nil), proPlan.Features...)
}
