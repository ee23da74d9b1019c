// Package starfish provides a client for interacting with the Starfish API.
//
// Starfish is a storage-management service for HPC file systems. This package
// implements the request machinery shared by every endpoint: authentication,
// dispatch, retries, pagination and error classification. It also implements a
// few endpoints on top of it (volumes, subpaths, membership, async queries).
//
// # Architecture
//
//   - Session: base URL, credentials and the current token. Token exchanges are
//     single-flight, so concurrent callers that find no token share one exchange.
//   - Transport: one network exchange. BlockingTransport runs it on the calling
//     goroutine. NonBlockingTransport dispatches it and waits only on completion
//     or cancellation. Both classify outcomes identically.
//   - Executor (Client.Send, Client.SendRaw): builds the request, retries rate
//     limits, server faults and transport faults with capped exponential
//     backoff, and re-authenticates once after a 401/403.
//   - Classify: total mapping from a response to an error Kind.
//   - Cursor: lazy, single-use iteration over paginated collections.
//
// # Usage
//
//	logger := zerolog.New(os.Stderr)
//	client, err := starfish.NewClient(
//		"https://starfish.example.edu/api/",
//		starfish.Credentials{Username: "svc", Password: "secret"},
//		logger,
//		starfish.WithTimeout(30*time.Second),
//		starfish.WithMaxRetries(5),
//		starfish.WithMode(starfish.ModeNonBlocking),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	names, err := client.VolumeNames(ctx)
//
//	// Any collection endpoint
//	cur := starfish.NewCursor[starfish.Entry](client, starfish.Get("storage/home:"))
//	for entry, err := range cur.All(ctx) {
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(entry.Basename)
//	}
//
//	// Concurrent calls
//	call := client.Go(ctx, starfish.Get("storage/"), &out)
//	<-call.Done()
//
// # Error Handling
//
// Every failure returned by the executor is an *Error with a Kind:
//
//   - KindAuth: 401/403 or a rejected credential exchange (retried once with a fresh token)
//   - KindRateLimited: 429 (retried with backoff, honouring Retry-After)
//   - KindClientFault: other 4xx (never retried)
//   - KindServerFault: 5xx or unrecognized status (retried for idempotent requests)
//   - KindTransport: connection, DNS, TLS, timeout or cancellation (retried like server faults)
//   - KindPagination: collection body without the items array (never retried)
//
// Kinds can be matched with errors.Is against the package sentinels:
//
//	if errors.Is(err, starfish.ErrRateLimited) {
//		// back off for longer
//	}
package starfish
