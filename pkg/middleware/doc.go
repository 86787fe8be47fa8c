// Package middleware provides HTTP middleware for session resolution and rate
// limiting.
//
// SessionMiddleware reads the rackbook_session cookie and, when it resolves to
// a live session, places the user on the request context where
// auth.ContextAccessor finds it. Invalid or missing sessions are not an error
// here: the request continues anonymously and the RBAC guard rejects it if the
// operation needs a user.
//
// RateLimitMiddleware applies a per-client-IP token bucket and is mounted on
// the /auth/* routes:
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	limiter.StartCleanup(ctx)
//	authRouter.Use(middleware.NewRateLimitMiddleware(limiter).Handler)
package middleware
