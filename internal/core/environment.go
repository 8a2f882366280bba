package core

// Environment is the deployment environment the service runs in. It mostly
// drives logging defaults.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment is production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps an APP_ENV value onto a known environment. Unknown
// or empty values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production:
		return Production
	case Staging:
		return Staging
	default:
		return Development
	}
}
