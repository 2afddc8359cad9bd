// Package labbcat provides a Go client for the LaBB-CAT linguistic annotation
// server's HTTP API.
//
// LaBB-CAT stores transcripts, participants and media as annotation graphs,
// and answers every API call with a JSON envelope carrying a model, error
// messages and the server version. This package hides the envelope, the
// login handshake and the polling of long-running server tasks behind plain
// Go methods.
//
// # Getting Started
//
// Create a client for the server's base URL:
//
//	client, err := labbcat.NewClient("https://labbcat.example.org/labbcat",
//	    labbcat.WithCredentials("demo", "demo"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The first request probes the server. If it answers 401, the client retries
// with HTTP Basic authentication, and a session cookie carries the login for
// later requests. Login runs the handshake explicitly:
//
//	version, err := client.Login(ctx)
//
// # Querying the Store
//
//	layers, err := client.Layers(ctx)
//	ids, err := client.MatchingTranscriptIDs(ctx,
//	    "/AP2505.*/.test(id)", &labbcat.Page{Length: 20}, "id DESC")
//	n, err := client.CountAnnotations(ctx, "AP2505_Nelson.eaf", "orthography")
//
// # Searching
//
// Patterns are built column by column, one column per token:
//
//	pattern := labbcat.NewPatternBuilder().
//	    AddMatchLayer("orthography", "knox").
//	    AddColumn().
//	    AddMatchLayer("orthography", "the").
//	    Build()
//
// SearchMatches runs the search, waits for it, and releases it on the server:
//
//	matches, err := client.SearchMatches(ctx, pattern, 1, 100,
//	    labbcat.WithMainParticipantOnly(),
//	)
//
// The lower-level Search, Matches and ReleaseTask calls give control over
// each step.
//
// # Tasks
//
// Searches, uploads and layer generation run as server tasks. WaitForTask
// polls one until it finishes:
//
//	status, err := client.WaitForTask(ctx, threadID, 5*time.Minute,
//	    labbcat.WithProgress(func(s *labbcat.TaskStatus) {
//	        fmt.Println(s)
//	    }),
//	)
//
// Cancelling ctx stops waiting, and also stops any upload in progress.
//
// # Uploading
//
//	threadID, err := client.NewTranscript(ctx, "interview.eaf",
//	    []string{"interview.wav"}, "", "interview", "corpus", "episode")
//
// # Error Handling
//
//	_, err := client.Layer(ctx, "nonexistent")
//	if err != nil {
//	    if labbcat.IsNotFound(err) {
//	        // no such layer
//	    } else if labbcat.IsUnauthorized(err) {
//	        // credentials missing or refused
//	    } else if labbcat.IsServerNotRunning(err) {
//	        // server is not reachable
//	    }
//	}
//
// Errors reported by the server are *ResponseError values carrying the
// parsed envelope.
//
// # Configuration Options
//
//	labbcat.WithCredentials(user, pw)      // HTTP Basic login
//	labbcat.WithPasswordPrompt(fn)         // ask when credentials are refused
//	labbcat.WithLanguage(lang)             // Accept-Language (default: from $LANG)
//	labbcat.WithTimeout(duration)          // per-request timeout (default: 3m)
//	labbcat.WithRetries(n)                 // GET retries (default: 2)
//	labbcat.WithLogger(logger)             // zerolog logger (default: disabled)
//	labbcat.WithDefaultPollInterval(d)     // task polling fallback (default: 2s)
package labbcat
