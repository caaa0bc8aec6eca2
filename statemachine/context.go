package statemachine

import (
	"maps"
	"sync"
	"time"
)

// Context is the mutable fact base threaded through guards and actions for one
// actor. It is owned by a single scheduler; guards only read it, actions
// mutate a working copy, and the scheduler commits that copy after a
// successful step. The mutex keeps concurrent observers (loggers, metrics
// scrapers) safe, not concurrent writers; the step loop is strictly
// sequential per actor.
type Context struct {
	mu           sync.RWMutex
	ActorID      string
	Profile      string
	CurrentState string
	Data         map[string]any
	History      []StepRecord
	PathHistory  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StepRecord captures one committed step in the actor's history.
type StepRecord struct {
	From       string
	Transition string
	To         string
	Timestamp  time.Time
}

// NewContext creates a fresh actor context.
func NewContext(actorID, profile string) *Context {
	now := time.Now()

	return &Context{
		ActorID:     actorID,
		Profile:     profile,
		Data:        make(map[string]any),
		History:     []StepRecord{},
		PathHistory: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Get retrieves a value from the context data.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.Data[key]

	return val, ok
}

// Set stores a value in the context data.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Data[key] = value
	c.UpdatedAt = time.Now()
}

// GetString retrieves a string value from the context data.
func (c *Context) GetString(key string) (string, bool) {
	val, ok := c.Get(key)
	if !ok {
		return "", false
	}

	str, ok := val.(string)

	return str, ok
}

// GetBool retrieves a boolean value from the context data.
func (c *Context) GetBool(key string) (bool, bool) {
	val, ok := c.Get(key)
	if !ok {
		return false, false
	}

	b, ok := val.(bool)

	return b, ok
}

// GetInt retrieves an integer value from the context data.
func (c *Context) GetInt(key string) (int, bool) {
	val, ok := c.Get(key)
	if !ok {
		return 0, false
	}

	i, ok := val.(int)

	return i, ok
}

// GetFloat retrieves a float value from the context data.
func (c *Context) GetFloat(key string) (float64, bool) {
	val, ok := c.Get(key)
	if !ok {
		return 0, false
	}

	f, ok := val.(float64)

	return f, ok
}

// GetTime retrieves a timestamp value from the context data.
func (c *Context) GetTime(key string) (time.Time, bool) {
	val, ok := c.Get(key)
	if !ok {
		return time.Time{}, false
	}

	t, ok := val.(time.Time)

	return t, ok
}

// Increment adds delta to an integer counter, treating an absent or non-int
// value as zero, and returns the new count.
func (c *Context) Increment(key string, delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, _ := c.Data[key].(int)
	current += delta

	c.Data[key] = current
	c.UpdatedAt = time.Now()

	return current
}

// Merge merges a map of data into the context.
func (c *Context) Merge(data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maps.Copy(c.Data, data)

	c.UpdatedAt = time.Now()
}

// Clone creates a deep copy of the context. The scheduler hands clones to
// actions so a failed action never leaves a partially-updated context behind.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Context{
		ActorID:      c.ActorID,
		Profile:      c.Profile,
		CurrentState: c.CurrentState,
		Data:         make(map[string]any),
		History:      make([]StepRecord, len(c.History)),
		PathHistory:  make([]string, len(c.PathHistory)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}

	maps.Copy(clone.Data, c.Data)
	copy(clone.History, c.History)
	copy(clone.PathHistory, c.PathHistory)

	return clone
}

// AddStep records a committed step in the history.
func (c *Context) AddStep(from, transition, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.History = append(c.History, StepRecord{
		From:       from,
		Transition: transition,
		To:         to,
		Timestamp:  time.Now(),
	})
	c.UpdatedAt = time.Now()
}

// AppendToPath adds a visited state to the path history.
func (c *Context) AppendToPath(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.PathHistory = append(c.PathHistory, state)
	c.UpdatedAt = time.Now()
}
