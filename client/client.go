// Package client embeds the browser script of live pages.
package client

import _ "embed"

// Path is where the server publishes Script.
const Path = "/_markout/client.js"

// Script keeps a rendered page in sync with its live session and exposes
// markout.assign(scope, key, value) to page code.
//
//go:embed markout.js
var Script []byte
