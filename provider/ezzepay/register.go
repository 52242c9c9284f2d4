package ezzepay

import "github.com/pixloo/pixgate/provider"

// Register EzzePay provider with the gateway registry
func init() {
	provider.Register("ezzepay", NewProvider)
}
