package provider

import "strings"

// PriorityOrder is the fixed auto-selection order for deposits. The first
// enabled provider wins when the client does not request one explicitly.
var PriorityOrder = []string{"woovi", "ondapay", "ezzepay", "digitopay", "bspay", "suitpay"}

// Flags holds the per-provider enabled flags from platform configuration.
type Flags map[string]bool

// Enabled reports whether the named provider is flagged on.
func (f Flags) Enabled(name string) bool {
	return f[strings.ToLower(strings.TrimSpace(name))]
}

// SelectGateway picks the provider that should handle a deposit request.
// A non-empty requested name is honored only if that provider is enabled;
// otherwise selection falls back to the fixed priority order. Returns
// ErrGatewayNotConfigured when nothing resolves.
func SelectGateway(requested string, flags Flags) (string, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && flags.Enabled(requested) {
		return requested, nil
	}

	for _, name := range PriorityOrder {
		if flags.Enabled(name) {
			return name, nil
		}
	}

	return "", ErrGatewayNotConfigured
}
