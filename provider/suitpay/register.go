package suitpay

import "github.com/pixloo/pixgate/provider"

// Register SuitPay provider with the gateway registry
func init() {
	provider.Register("suitpay", NewProvider)
}
