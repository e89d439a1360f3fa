package world

import (
	"sync"

	"github.com/agentic-research/dirworld/api"
)

// GlobalInstance is the instance name of variables not owned by an actor.
const GlobalInstance = "global"

// Variables is the dialogue variable store of one world session, keyed
// "<instance>.<name>". Actors use their payload ID as instance name.
type Variables struct {
	mu   sync.RWMutex
	vals map[string]api.Value
}

func NewVariables() *Variables {
	return &Variables{vals: make(map[string]api.Value)}
}

func varKey(instance, name string) string {
	return instance + "." + name
}

func (v *Variables) Set(instance, name string, val api.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[varKey(instance, name)] = val
}

func (v *Variables) Get(instance, name string) (api.Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.vals[varKey(instance, name)]
	return val, ok
}

// String returns the variable if it holds a string, "" otherwise.
func (v *Variables) String(instance, name string) string {
	if val, ok := v.Get(instance, name); ok && val.Kind == api.ValueString {
		return val.Str
	}
	return ""
}

// Number returns the variable if it holds a number, 0 otherwise.
func (v *Variables) Number(instance, name string) float64 {
	if val, ok := v.Get(instance, name); ok && val.Kind == api.ValueNumber {
		return val.Number
	}
	return 0
}

// Bool returns the variable if it holds a bool, false otherwise.
func (v *Variables) Bool(instance, name string) bool {
	if val, ok := v.Get(instance, name); ok && val.Kind == api.ValueBool {
		return val.Bool
	}
	return false
}

// LoadActor seeds an actor's local variables. Values already set in this
// session win, so re-entering a room does not reset a conversation.
func (v *Variables) LoadActor(instance string, actor *api.Actor) {
	if actor == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for name, val := range actor.LocalVariables {
		k := varKey(instance, name)
		if _, ok := v.vals[k]; !ok {
			v.vals[k] = val
		}
	}
}

// SyncActor copies the session values of an actor's variables back into it.
func (v *Variables) SyncActor(instance string, actor *api.Actor) {
	if actor == nil {
		return
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	for name := range actor.LocalVariables {
		if val, ok := v.vals[varKey(instance, name)]; ok {
			actor.LocalVariables[name] = val
		}
	}
}
