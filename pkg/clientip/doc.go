// Package clientip extracts real client IP addresses from HTTP requests.
//
// Headers are checked in this order, and the first valid address wins:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry)
//  4. X-Real-IP (nginx and other proxies)
//  5. RemoteAddr (direct connection)
//
// Addresses are parsed with net.ParseIP and normalized. Invalid values and
// the unspecified address (0.0.0.0 or ::) are skipped. IPv6 and IPv4-mapped
// IPv6 addresses are supported.
//
//	log.Info("client connected", logger.ClientIP(clientip.GetIP(r)))
//
// GetIP never panics and always returns a string. If nothing parses, the raw
// RemoteAddr is returned.
package clientip
