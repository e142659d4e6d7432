// Package registry defines the fixed catalog of assessment factors and
// the curated search keywords behind each one.
package registry

// FactorKind describes the value type a factor produces.
type FactorKind string

const (
	// KindScore factors are bounded floats in [0,1].
	KindScore FactorKind = "score"
	// KindInteger factors are whole numbers (e.g. months).
	KindInteger FactorKind = "integer"
	// KindCategory factors draw from a small enumerated set.
	KindCategory FactorKind = "category"
)

// Factor is one assessment dimension.
type Factor struct {
	Name       string     `yaml:"name"`
	Kind       FactorKind `yaml:"kind"`
	Keywords   []string   `yaml:"keywords"`
	Categories []string   `yaml:"categories,omitempty"`
}

// Factor names. The order of defaultFactors is the order the
// aggregator walks them in.
const (
	FactorTechStack            = "tech_stack"
	FactorBusinessAgeMonths    = "business_age_months"
	FactorMerchantCategory     = "merchant_category"
	FactorCompanyScale         = "company_scale"
	FactorIntegrationReadiness = "integration_readiness_score"
	FactorTransactionIntent    = "transaction_intent_score"
	FactorDigitalMaturity      = "digital_maturity_score"
	FactorWebPresenceQuality   = "web_presence_quality"
	FactorFraudRiskPattern     = "fraud_risk_pattern_score"
	FactorTrafficCheck         = "traffic_check"
	FactorBrandSearchVolume    = "brand_search_volume"
)

var defaultFactors = []Factor{
	{
		Name:       FactorTechStack,
		Kind:       KindCategory,
		Keywords:   []string{"built on", "powered by", "Shopify", "WooCommerce", "WordPress", "Magento", "bigcommerce", "platform"},
		Categories: []string{"Shopify", "WooCommerce", "WordPress", "Custom", "Unknown"},
	},
	{
		Name:     FactorBusinessAgeMonths,
		Kind:     KindInteger,
		Keywords: []string{"founded", "established", "since", "founded in", "incorporated", "year"},
	},
	{
		Name:       FactorMerchantCategory,
		Kind:       KindCategory,
		Keywords:   []string{"subscription", "SaaS", "services", "e-commerce", "online store", "marketplace"},
		Categories: []string{"Subscription", "Services", "E-commerce", "SaaS", "Other"},
	},
	{
		Name:       FactorCompanyScale,
		Kind:       KindCategory,
		Keywords:   []string{"employees", "team of", "headcount", "startup", "enterprise", "SMB", "small business"},
		Categories: []string{"SMB", "Medium", "Enterprise"},
	},
	{
		Name:     FactorIntegrationReadiness,
		Kind:     KindScore,
		Keywords: []string{"API", "integrations", "developer docs", "plugins", "extensions", "Zapier", "webhooks"},
	},
	{
		Name:     FactorTransactionIntent,
		Kind:     KindScore,
		Keywords: []string{"checkout", "buy now", "pricing", "add to cart", "purchase", "orders", "payment"},
	},
	{
		Name:     FactorDigitalMaturity,
		Kind:     KindScore,
		Keywords: []string{"analytics", "Google Analytics", "tracking", "mobile friendly", "responsive", "PWA", "SEO"},
	},
	{
		Name:     FactorWebPresenceQuality,
		Kind:     KindScore,
		Keywords: []string{"press", "blog", "mentions", "backlinks", "domain authority", "traffic", "social"},
	},
	{
		Name:     FactorFraudRiskPattern,
		Kind:     KindScore,
		Keywords: []string{"chargeback", "fraud", "complaint", "scam", "refund", "lawsuit", "security breach"},
	},
	{
		Name:     FactorTrafficCheck,
		Kind:     KindScore,
		Keywords: []string{"monthly visits", "traffic", "SimilarWeb", "Alexa", "semrush", "traffic estimate"},
	},
	{
		Name:     FactorBrandSearchVolume,
		Kind:     KindScore,
		Keywords: []string{"search volume", "brand searches", "Google Trends", "searches for"},
	},
}

// Registry holds the ordered factor catalog.
type Registry struct {
	factors []Factor
	byName  map[string]Factor
}

// Default returns the built-in factor registry.
func Default() *Registry {
	return newRegistry(defaultFactors)
}

func newRegistry(factors []Factor) *Registry {
	byName := make(map[string]Factor, len(factors))
	for _, f := range factors {
		byName[f.Name] = f
	}
	return &Registry{factors: factors, byName: byName}
}

// All returns the factors in their fixed assessment order.
func (r *Registry) All() []Factor {
	return r.factors
}

// Get looks up a factor by name.
func (r *Registry) Get(name string) (Factor, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Names returns the factor names in assessment order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.factors))
	for i, f := range r.factors {
		names[i] = f.Name
	}
	return names
}

// ScoreFactors returns the names of the score-type factors, the subset
// that participates in numeric aggregation.
func (r *Registry) ScoreFactors() []string {
	var names []string
	for _, f := range r.factors {
		if f.Kind == KindScore {
			names = append(names, f.Name)
		}
	}
	return names
}
