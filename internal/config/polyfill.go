package config

import "github.com/marmos91/witrpc/polyfill"

// SkipRules converts the configured skip-allowlist to polyfill.SkipRule
// values ready to pass to polyfill.Polyfill.
func (c PolyfillConfig) SkipRules() []polyfill.SkipRule {
	rules := make([]polyfill.SkipRule, len(c.Skip))
	for i, r := range c.Skip {
		rules[i] = polyfill.SkipRule{
			Package:   r.Package,
			Interface: r.Interface,
			MinPatch:  r.MinPatch,
		}
	}
	return rules
}
