// Package token signs and validates the short-lived access tokens.
package token
