// Package web carries the browser client script, embedded at build time so
// the collector serves it from memory.
package web

import _ "embed"

// ClientScript is the consent-gated analytics client delivered to browsers.
//
//go:embed dataforge-client.js
var ClientScript []byte
