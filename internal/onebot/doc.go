// Package onebot adapts a OneBot v11 HTTP endpoint to the delivery and
// pipeline packages.
//
// Client performs API calls. Target is one chat (a group or a private
// session) and implements delivery.Destination; its Capabilities method
// reports which forward-message actions the chat can use. Webhook receives
// event posts from the endpoint, drops duplicates, and hands message events
// to a Handler on a separate goroutine so the endpoint is never kept waiting
// on a conversion.
package onebot
