/*
Package resilience provides the failure-handling primitives used when talking
to the debugged browser.

# Retry

Retry is a bounded, sequential retry combinator. The policy decides which
errors are worth another attempt; everything else is returned at once.

	target, err := resilience.Retry(ctx, resilience.Policy{
		MaxAttempts: 1 + retries,
		Delay:       time.Second,
		Retryable:   devtools.IsRetryable,
	}, client.discoverOnce)

# Breaker

Breaker stops hammering a target that keeps failing.

	breaker := resilience.New("devtools-target", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
	})
	err := breaker.Do(func() error { return fetch(ctx) })

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                                        |
	                                                  [probe failed]
	                                                        |
	                                                        v
	                                                      Open
*/
package resilience
