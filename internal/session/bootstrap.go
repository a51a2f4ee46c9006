package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"leadlens/api/internal/store"
)

// Bootstrap state, in the order a client session moves through it.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateRestoring       State = "restoring"
	StateProfileLoading  State = "profile_loading"
	StateReady           State = "ready"
	StateSignedOut       State = "signed_out"
)

// ProfileFetcher loads a user profile from the backing store.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (store.UserProfile, error)
}

// ProfileFetcherFunc adapts a function to the ProfileFetcher interface.
type ProfileFetcherFunc func(ctx context.Context, userID string) (store.UserProfile, error)

func (f ProfileFetcherFunc) FetchProfile(ctx context.Context, userID string) (store.UserProfile, error) {
	return f(ctx, userID)
}

// Bootstrap drives the session restore sequence: it fetches the profile
// for an authenticated user exactly once, no matter how many auth events
// fire concurrently, and tracks where the session is in its lifecycle.
type Bootstrap struct {
	fetcher ProfileFetcher
	timeout time.Duration

	group singleflight.Group

	mu       sync.Mutex
	state    State
	profiles map[string]store.UserProfile
	loading  map[string]bool
}

// NewBootstrap creates a bootstrap machine. timeout bounds each profile
// fetch; zero means 30 seconds.
func NewBootstrap(fetcher ProfileFetcher, timeout time.Duration) *Bootstrap {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bootstrap{
		fetcher:  fetcher,
		timeout:  timeout,
		state:    StateUnauthenticated,
		profiles: make(map[string]store.UserProfile),
		loading:  make(map[string]bool),
	}
}

// State returns the current lifecycle state.
func (b *Bootstrap) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// CachedProfile returns the cached profile for a user, if any.
func (b *Bootstrap) CachedProfile(userID string) (store.UserProfile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	profile, ok := b.profiles[userID]
	return profile, ok
}

// HandleSignIn reacts to a fresh sign-in: it moves the session to the
// loading state and fetches the profile. Concurrent calls for the same
// user share a single fetch.
func (b *Bootstrap) HandleSignIn(ctx context.Context, userID string) (store.UserProfile, error) {
	b.mu.Lock()
	if profile, ok := b.profiles[userID]; ok {
		b.state = StateReady
		b.mu.Unlock()
		return profile, nil
	}
	b.state = StateProfileLoading
	b.loading[userID] = true
	b.mu.Unlock()

	return b.fetch(ctx, userID)
}

// HandleRestore reacts to an existing session found at startup. Same
// dedup semantics as sign-in but the machine passes through restoring.
func (b *Bootstrap) HandleRestore(ctx context.Context, userID string) (store.UserProfile, error) {
	b.mu.Lock()
	b.state = StateRestoring
	if profile, ok := b.profiles[userID]; ok {
		b.state = StateReady
		b.mu.Unlock()
		return profile, nil
	}
	b.state = StateProfileLoading
	b.loading[userID] = true
	b.mu.Unlock()

	return b.fetch(ctx, userID)
}

// HandleTokenRefresh reacts to a token refresh. A refresh never triggers
// a profile fetch: when the profile is already cached it only clears a
// loading flag left over from an interrupted fetch. Without a cached
// profile the stuck flag stays, so the pending fetch can still finish.
func (b *Bootstrap) HandleTokenRefresh(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.profiles[userID]; ok {
		if b.loading[userID] {
			log.Printf("session: clearing stale loading flag for user %s on token refresh", userID)
			delete(b.loading, userID)
		}
		b.state = StateReady
	}
}

// HandleSignOut clears the session synchronously. After it returns, no
// cached profile or loading flag remains for the user.
func (b *Bootstrap) HandleSignOut(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.profiles, userID)
	delete(b.loading, userID)
	b.group.Forget(userID)
	b.state = StateSignedOut
}

// Loading reports whether a profile fetch is in flight for the user.
func (b *Bootstrap) Loading(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading[userID]
}

func (b *Bootstrap) fetch(ctx context.Context, userID string) (store.UserProfile, error) {
	value, err, _ := b.group.Do(userID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.fetcher.FetchProfile(fetchCtx, userID)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.loading, userID)

	if err != nil {
		b.state = StateUnauthenticated
		return store.UserProfile{}, fmt.Errorf("fetch profile: %w", err)
	}

	profile := value.(store.UserProfile)
	b.profiles[userID] = profile
	b.state = StateReady
	return profile, nil
}
