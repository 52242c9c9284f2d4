package woovi

import "github.com/pixloo/pixgate/provider"

// Register Woovi provider with the gateway registry
func init() {
	provider.Register("woovi", NewProvider)
}
