// Package mockhttp provides a builder for mock HTTP servers in tests.
//
// It removes boilerplate when testing clients of the trust-agent API by
// giving a fluent way to configure responses, capture requests, and
// validate headers.
//
// # Basic Usage
//
// Serve a JSON manifest:
//
//	server, _ := mockhttp.New().
//		JSON("/v1/manifest", m).
//		Build()
//	defer server.Close()
//
// # Status Codes
//
// Return specific status codes with or without bodies:
//
//	server, _ := mockhttp.New().
//		Status("/v1/manifest", http.StatusUnauthorized).
//		StatusWithBody("/v1/quote", 503, `{"state": "QUEUE"}`).
//		Build()
//
// # Request Capture
//
// Capture requests for assertion in tests:
//
//	builder := mockhttp.New().JSON("/v1/manifest", m)
//	capture := builder.Capture()
//	server, _ := builder.Build()
//	defer server.Close()
//
//	// ... make requests ...
//
//	req := capture.Last()
//	if req.Headers.Get("Accept") != "application/json" {
//		t.Errorf("Accept = %q", req.Headers.Get("Accept"))
//	}
//
// # TLS Servers
//
// Create HTTPS mock servers. The server certificate is self-signed, so
// clients need the test CA or verification disabled:
//
//	server, client := mockhttp.New().
//		TLS().
//		JSON("/v1/manifest", m).
//		Build()
//	defer server.Close()
//
// # Path Matching
//
// Paths support exact match and prefix match with a "*" suffix:
//
//	server, _ := mockhttp.New().
//		JSON("/v1/manifest", m1).  // Matches only /v1/manifest
//		JSON("/v1/*", m2).         // Matches /v1/anything
//		Build()
package mockhttp
