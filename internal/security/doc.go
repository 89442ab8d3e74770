// Package security validates outbound request targets.
//
// The ingestion pipeline fetches user-supplied URLs, which makes it an
// SSRF vector (CWE-918): a crafted URL could point the server at its own
// loopback services, private networks, or cloud metadata endpoints. The
// URL validator blocks those targets twice over:
//
//   - Validate rejects a URL as written (scheme, host, literal IPs).
//   - SafeTransport re-checks every IP the hostname resolves to at dial
//     time, which is what actually stops DNS rebinding.
//
// Use both together:
//
//	v := security.NewURL()
//	if err := v.Validate(rawURL); err != nil {
//	    return fmt.Errorf("fetch target rejected: %w", err)
//	}
//	client := &http.Client{
//	    Transport:     v.SafeTransport(),
//	    CheckRedirect: v.ValidateRedirect,
//	}
package security
