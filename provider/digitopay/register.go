package digitopay

import "github.com/pixloo/pixgate/provider"

// Register DigitoPay provider with the gateway registry
func init() {
	provider.Register("digitopay", NewProvider)
}
