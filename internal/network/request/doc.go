// Package request implements the outbound HTTP pipeline.
//
// A request moves through created, validating_uri, connecting, sending,
// awaiting_response, optionally redirecting back to connecting, then
// buffering_body and complete. Every hop is re-resolved and re-checked
// against the address rules, and its connection is pinned to the checked
// address. Redirects are followed manually so each one consumes the redirect
// budget and a Location pointing at the current URI ends the chain.
//
// Bodies are streamed through an optional content decoder and abandoned as
// soon as they exceed the download cap. The outcome is delivered as exactly
// one http_success or http_failure event.
package request
