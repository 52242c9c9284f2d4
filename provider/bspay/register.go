package bspay

import "github.com/pixloo/pixgate/provider"

// Register BsPay provider with the gateway registry
func init() {
	provider.Register("bspay", NewProvider)
}
