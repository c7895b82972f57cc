package plan

// Plan IDs for the built-in tiers
const (
	Starter  = "starter"
	Pro      = "pro"
	Business = "business"

	// DefaultPlanID is used for unknown or missing plan IDs
	DefaultPlanID = Starter
)

// Limits defines the resource ceilings of a plan
type Limits struct {
	Users          int     `yaml:"users" json:"users" validate:"min=1"`
	SMSPerMonth    int     `yaml:"smsPerMonth" json:"sms_per_month" validate:"min=0"`
	CostPerMonth   float64 `yaml:"costPerMonth" json:"cost_per_month" validate:"gt=0"`
	APICallsPerDay int     `yaml:"apiCallsPerDay" json:"api_calls_per_day" validate:"min=0"`
}

// Plan is an immutable subscription tier
type Plan struct {
	ID           string  `yaml:"id" json:"id" validate:"required"`
	Name         string  `yaml:"name" json:"name" validate:"required"`
	PriceMonthly float64 `yaml:"priceMonthly" json:"price_monthly" validate:"min=0"`
	Limits       Limits  `yaml:"limits" json:"limits" validate:"required"`
}

// Resource names a countable plan limit
type Resource string

const (
	ResourceUsers          Resource = "users"
	ResourceSMSPerMonth    Resource = "sms_per_month"
	ResourceAPICallsPerDay Resource = "api_calls_per_day"
)

// Defaults returns the built-in plan table
func Defaults() []*Plan {
	return []*Plan{
		{
			ID:           Starter,
			Name:         "Starter",
			PriceMonthly: 29,
			Limits: Limits{
				Users:          2,
				SMSPerMonth:    100,
				CostPerMonth:   15,
				APICallsPerDay: 500,
			},
		},
		{
			ID:           Pro,
			Name:         "Pro",
			PriceMonthly: 79,
			Limits: Limits{
				Users:          5,
				SMSPerMonth:    500,
				CostPerMonth:   50,
				APICallsPerDay: 2000,
			},
		},
		{
			ID:           Business,
			Name:         "Business",
			PriceMonthly: 199,
			Limits: Limits{
				Users:          20,
				SMSPerMonth:    2000,
				CostPerMonth:   150,
				APICallsPerDay: 10000,
			},
		},
	}
}

func (p *Plan) limitFor(resource Resource) (int, bool) {
	switch resource {
	case ResourceUsers:
		return p.Limits.Users, true
	case ResourceSMSPerMonth:
		return p.Limits.SMSPerMonth, true
	case ResourceAPICallsPerDay:
		return p.Limits.APICallsPerDay, true
	default:
		return 0, false
	}
}
