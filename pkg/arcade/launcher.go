package arcade

import (
	"context"
	"fmt"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/store"
)

// Launcher remembers the last game a user opened.
type Launcher struct {
	store store.Store
}

func NewLauncher(s store.Store) *Launcher {
	return &Launcher{store: s}
}

func (l *Launcher) SetLastGame(ctx context.Context, kind game.Kind) error {
	if _, err := game.ParseKind(string(kind)); err != nil {
		return &ErrUnknownKind{Kind: string(kind)}
	}
	if err := l.store.Set(ctx, store.KeyLastGame, string(kind)); err != nil {
		return fmt.Errorf("failed to save last game: %v", err)
	}
	return nil
}

// LastGame returns the last opened game. ok is false when nothing is stored
// or the stored value is not a known game.
func (l *Launcher) LastGame(ctx context.Context) (kind game.Kind, ok bool, err error) {
	raw, err := l.store.Get(ctx, store.KeyLastGame)
	if err != nil {
		if store.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load last game: %v", err)
	}
	kind, err = game.ParseKind(raw)
	if err != nil {
		return "", false, nil
	}
	return kind, true, nil
}
