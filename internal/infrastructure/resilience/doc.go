/*
Package resilience provides a circuit breaker for remote bundle origins.

A closed breaker passes calls through and counts failures inside a rolling
window. When Trip says so it opens and fails calls with ErrOpen until the
cooldown ends, then lets Probes calls through half-open. Enough successful
probes close it again; any failed probe reopens it.

	breaker := resilience.New("origin", resilience.Settings{
		Cooldown: 30 * time.Second,
		Healthy: func(err error) bool {
			return errors.Is(err, fs.ErrNotExist)
		},
	})

	data, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]byte, error) {
		return fetch(ctx, url)
	})

Calls cancelled by their own context are not counted.

	Closed --[Trip]-> Open --[Cooldown]-> Half-Open --[Probes ok]-> Closed
	                   ^                      |
	                   +------[failure]-------+
*/
package resilience
