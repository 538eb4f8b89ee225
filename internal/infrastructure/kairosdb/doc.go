// Package kairosdb provides the HTTP client the persistor uses to reach the
// KairosDB REST API.
//
// The client is a thin transport: it sends a JSON body (or none) to a path
// under the configured base URL and hands back status and body unchanged.
// Deciding what a status means for a given command is the caller's job.
//
// # Usage
//
//	client := kairosdb.New(cfg.BackendURL(), cfg.GetBackendTimeout())
//	defer client.Close()
//
//	resp, err := client.Do(ctx, http.MethodGet, "/api/v1/version", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.StatusCode, string(resp.Body))
//
// # Thread Safety
//
// A single Client is shared by all command handlers. It owns one
// *http.Client whose transport keeps idle connections alive between calls.
package kairosdb
