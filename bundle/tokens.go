package bundle

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poet/toc"
)

// TokenStore keeps document tokens between program runs.
type TokenStore interface {
	Token(ctx context.Context, key string) (toc.Token, bool, error)
	SaveToken(ctx context.Context, key string, token toc.Token) error
}

// idMap is a bidirectional one to one map between model values and tokens,
// a value keeps its token for the lifetime of the map.
type idMap struct {
	byValue map[any]toc.Token
	byToken map[toc.Token]any
	store   TokenStore
	log     *zap.Logger
}

func newIDMap(store TokenStore, log *zap.Logger) *idMap {
	return &idMap{
		byValue: make(map[any]toc.Token),
		byToken: make(map[toc.Token]any),
		store:   store,
		log:     log,
	}
}

// add returns token of v, assigning one when v is seen first time. Non empty
// key makes token persistent when store is available.
func (m *idMap) add(ctx context.Context, v any, key string) toc.Token {
	if t, ok := m.byValue[v]; ok {
		return t
	}

	var t toc.Token
	if m.store != nil && len(key) > 0 {
		stored, ok, err := m.store.Token(ctx, key)
		switch {
		case err != nil:
			m.log.Warn("Unable to read stored token", zap.String("key", key), zap.Error(err))
		case ok:
			if _, taken := m.byToken[stored]; !taken {
				t = stored
			}
		}
	}
	if len(t) == 0 {
		t = newToken()
		if m.store != nil && len(key) > 0 {
			if err := m.store.SaveToken(ctx, key, t); err != nil {
				m.log.Warn("Unable to store token", zap.String("key", key), zap.Error(err))
			}
		}
	}

	m.byValue[v] = t
	m.byToken[t] = v
	return t
}

func (m *idMap) lookup(t toc.Token) (any, bool) {
	v, ok := m.byToken[t]
	return v, ok
}

// newToken produces time ordered identifier, so tokens sort in creation order.
func newToken() toc.Token {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
