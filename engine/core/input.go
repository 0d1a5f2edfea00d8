package core

import "sync"

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_LEFT    KeyCode = 0x25
	KEY_UP      KeyCode = 0x26
	KEY_RIGHT   KeyCode = 0x27
	KEY_DOWN    KeyCode = 0x28
	KEY_A       KeyCode = 0x41
	KEY_D       KeyCode = 0x44
	KEY_E       KeyCode = 0x45
	KEY_Q       KeyCode = 0x51
	KEY_S       KeyCode = 0x53
	KEY_W       KeyCode = 0x57

	KEYS_MAX_KEYS KeyCode = 0xFF
)

type keyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input tracks the keyboard state fed by the platform layer. The platform writes from its
// event callbacks, the game loop reads once per frame.
type Input struct {
	mu       sync.RWMutex
	current  keyboardState
	previous keyboardState
}

func NewInput() *Input {
	LogDebug("Input subsystem initialized.")
	return &Input{}
}

// Update copies the current state to the previous state. Call once per frame.
func (in *Input) Update() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.previous.Keys[key]
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key == KEY_UNKNOWN || key >= KEYS_MAX_KEYS {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.current.Keys[key] = pressed
}
