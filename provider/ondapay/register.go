package ondapay

import "github.com/pixloo/pixgate/provider"

// Register OndaPay provider with the gateway registry
func init() {
	provider.Register("ondapay", NewProvider)
}
