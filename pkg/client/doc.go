// Package client drives an interactive echo session: read a line from the
// user, send it, print what comes back.
package client
