package generate

// DefaultQueries is the built-in search catalog for finding merchants
// likely to need a new payment gateway. Grouped by acquisition signal.
var DefaultQueries = []string{
	// New companies and startups.
	"new fintech startups 2025 2026 funding rounds",
	"e-commerce startups launched 2025 payment needs",
	"SaaS companies seeking payment integration",
	"marketplace platforms payment gateway",

	// Companies on competing processors.
	"companies using Stripe payment gateway",
	"Razorpay merchant integration news",
	"PayPal business integration announcement",
	"Square payment processing new clients",

	// Industry verticals.
	"online education platforms payment solutions",
	"telemedicine healthcare payment gateway",
	"food delivery apps payment integration",
	"travel booking payment processing",

	// Growth signals.
	"companies raising series A payment infrastructure",
	"digital transformation payment gateway adoption",
	"cross-border payment solution needs",
	"subscription business payment automation",
}
