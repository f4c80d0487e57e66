package localeconfig

import (
	"context"
	"sync"
)

// Session caches resolved configurations for one request or job run.
type Session struct {
	resolver *Resolver

	mu      sync.Mutex
	entries map[string]*sessionEntry
	enabled *bool
}

type sessionEntry struct {
	attrs    map[string]interface{}
	sourceID string
	cfg      *LocaleConfiguration
}

// NewSession creates an empty Session backed by r.
func (r *Resolver) NewSession() *Session {
	return &Session{resolver: r, entries: make(map[string]*sessionEntry)}
}

// Resolver returns the resolver backing the session.
func (s *Session) Resolver() *Resolver {
	return s.resolver
}

// Resolve returns the cached configuration of locale, resolving it on first use.
// The returned value is a copy; mutate it freely.
func (s *Session) Resolve(ctx context.Context, locale string) (*LocaleConfiguration, error) {
	e, err := s.entry(ctx, locale)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cfg == nil {
		cfg, err := decode(locale, e.attrs, e.sourceID)
		if err != nil {
			return nil, err
		}
		e.cfg = cfg
	}
	c := *e.cfg
	return &c, nil
}

// GetPref is Resolver.GetPref answered from the session's cached records.
// Names absent from the records still consult the site preference.
func (s *Session) GetPref(ctx context.Context, name, locale string) (interface{}, error) {
	enabled, err := s.cartridgeEnabled(ctx)
	if err != nil || !enabled {
		return nil, err
	}
	e, err := s.entry(ctx, locale)
	if err != nil {
		return nil, err
	}
	return s.resolver.lookup(ctx, e.attrs, name)
}

func (s *Session) cartridgeEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	cached := s.enabled
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	enabled, err := s.resolver.CartridgeEnabled(ctx)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.enabled = &enabled
	s.mu.Unlock()
	return enabled, nil
}

func (s *Session) entry(ctx context.Context, locale string) (*sessionEntry, error) {
	s.mu.Lock()
	e, ok := s.entries[locale]
	s.mu.Unlock()
	if ok {
		return e, nil
	}
	attrs, sourceID, err := s.resolver.overlay(ctx, locale)
	if err != nil {
		return nil, err
	}
	e = &sessionEntry{attrs: attrs, sourceID: sourceID}
	s.mu.Lock()
	s.entries[locale] = e
	s.mu.Unlock()
	return e, nil
}

// Invalidate drops the cached entries of locales. Invalidating "default"
// drops every entry, since each one was resolved on top of it.
func (s *Session) Invalidate(locales ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range locales {
		if l == DefaultLocale {
			s.entries = make(map[string]*sessionEntry)
			return
		}
		delete(s.entries, l)
	}
}

// InvalidateAll empties the cache, the cartridge switch included.
func (s *Session) InvalidateAll() {
	s.mu.Lock()
	s.entries = make(map[string]*sessionEntry)
	s.enabled = nil
	s.mu.Unlock()
}
