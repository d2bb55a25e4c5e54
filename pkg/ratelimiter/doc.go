// Package ratelimiter provides fixed-window action counting per identity.
//
// A window opens on the first hit for a key and lasts Config.Window. Every hit
// increments the window counter; once the counter exceeds Config.MaxActions the
// key is rejected until the window ends. The next hit after the end opens a new
// window anchored at that hit, so windows are not aligned to wall-clock boundaries.
//
// # Stores
//
// MemoryStore keeps windows in process memory. Records are never needed after
// their window ends, so a background sweep removes windows that expired more
// than a grace period ago:
//
//	store := ratelimiter.NewMemoryStore(
//		ratelimiter.WithSweepInterval(time.Minute),
//	)
//	g.Go(store.Run(ctx))
//
// RedisStore keeps windows in Redis with a TTL equal to the window length,
// which lets several processes share one budget per key.
//
// # Usage
//
//	limiter, err := ratelimiter.New(store, ratelimiter.Config{
//		Window:     10 * time.Second,
//		MaxActions: 100,
//	}, ratelimiter.WithOnLimited(func(string) { rejected.Inc() }))
//	if err != nil {
//		return err
//	}
//
//	if !limiter.Check(ctx, connID) {
//		// drop the action
//	}
//
// Store errors fail open: Check logs the error and allows the action.
package ratelimiter
