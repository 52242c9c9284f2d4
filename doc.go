// Package pixgate provides a unified PIX payment gateway that abstracts
// multiple Brazilian payment providers behind a single, standardized API.
// It creates charges, sends transfers, verifies and settles webhooks, and
// credits wallet balances exactly once per payment.
//
// # Overview
//
// Every PIX provider exposes a different API: different authentication
// schemes, different payload shapes, different webhook signatures and event
// names. Pixgate standardizes all of them into one consistent interface, so
// the wallet only ever talks about charges, transfers and normalized
// webhook events.
//
// # Supported Providers
//
// Currently supported PIX providers include:
//   - Woovi (OpenPix): charges, transfers, HMAC-SHA1 webhooks
//   - SuitPay: QR code charges and pix payments
//   - EzzePay (EzzeBank): OAuth bearer charges and payouts
//   - DigitoPay: token-exchange auth, deposits and withdrawals
//   - OndaPay: API-key charges and payouts
//   - BsPay: basic-auth charges and payouts
//
// # Quick Start
//
// Basic usage example:
//
//	package main
//
//	import (
//	    "context"
//
//	    "github.com/shopspring/decimal"
//
//	    "github.com/pixloo/pixgate/provider"
//	    _ "github.com/pixloo/pixgate/provider/woovi" // Import to register provider
//	)
//
//	func main() {
//	    service := provider.NewGatewayService()
//
//	    conf := map[string]string{
//	        "appId":         "your-app-id",
//	        "webhookSecret": "your-webhook-secret",
//	    }
//	    if err := service.AddProvider("woovi", conf, true); err != nil {
//	        panic(err)
//	    }
//
//	    name, gw, err := service.Select("")
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    resp, err := gw.CreateCharge(context.Background(), provider.ChargeRequest{
//	        CorrelationID: provider.NewCorrelationID(),
//	        Amount:        decimal.NewFromInt(100),
//	        Currency:      "BRL",
//	        TaxID:         "12345678901",
//	    })
//	    _ = name
//	    _, _ = resp, err
//	}
//
// # Settlement
//
// Webhook deliveries are at-least-once. The settlement package claims the
// pending transaction with a row lock before crediting, so duplicate and
// concurrent deliveries of the same payment settle exactly once.
package pixgate
