// Package room keeps room membership for one relay namespace.
package room
