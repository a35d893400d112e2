package tokenvalidator

import "regexp"

// Config holds the validator's runtime options (issuer, audience,
// discovery URL, max token bytes, clock skew, max token age) plus the
// configurable injection pattern list for the final sanitization layer.
type Config struct {
	Issuer           string
	Audience         string
	DiscoveryURL     string
	MaxTokenBytes    int
	ClockSkewSeconds int
	MaxAgeHours      int
	InjectionPatterns []string
}

// DefaultConfig returns the validator's baseline defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokenBytes:    8192,
		ClockSkewSeconds: 60,
		MaxAgeHours:      24,
		InjectionPatterns: []string{
			`(?i)\b(union\s+select|drop\s+table|or\s+1=1|--\s*$)`,
			`(?i)<script[\s>]`,
			`(?i)\$\{jndi:`,
			`(?i)\)\(\|`, // LDAP-ish filter injection
		},
	}
}

func (c Config) compiledPatterns() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.InjectionPatterns))
	for _, p := range c.InjectionPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}
