package overlay

import (
	"errors"
	"sync"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/selector"
)

// ErrNoFrame reports a call-stack operation with no call in progress.
var ErrNoFrame = errors.New("no call in progress")

// The global registry holds handlers every session splices in at call
// entry.  Sessions track the version counter so an unchanged registry
// costs one comparison per call.
var (
	regMu      sync.Mutex
	regVersion uint64 = 1
	regHandles []*Handle
)

// Handle identifies one globally registered handler.
type Handle struct {
	acc    interpret.Accumulator
	active bool
}

// RegisterHandler adds an accumulator to the global registry.  Every
// session picks it up at its next call entry.
func RegisterHandler(acc interpret.Accumulator) *Handle {
	h := &Handle{acc: acc, active: true}
	regMu.Lock()
	regHandles = append(regHandles, h)
	regVersion++
	regMu.Unlock()
	return h
}

// Register parses the pattern, resolves it against env (NameEnv when
// nil), and registers an Immediate trigger for it.
func Register(pattern string, env selector.Env, onMatch interpret.Handler) (*Handle, error) {
	if env == nil {
		env = selector.NameEnv{}
	}
	c, err := selector.Select(pattern, env)
	if err != nil {
		return nil, err
	}
	return RegisterHandler(interpret.NewImmediate(c, interpret.Events{Trigger: onMatch})), nil
}

// Deactivate removes the handler from the registry.  New matches stop,
// even in sessions mid-call; in-flight accumulators on existing stacks
// still close and fire normally.
func (h *Handle) Deactivate() {
	regMu.Lock()
	if h.active {
		h.active = false
		for i, have := range regHandles {
			if have == h {
				regHandles = append(regHandles[:i:i], regHandles[i+1:]...)
				break
			}
		}
		regVersion++
	}
	regMu.Unlock()
}

func registryVersion() uint64 {
	regMu.Lock()
	v := regVersion
	regMu.Unlock()
	return v
}

// inactiveHandles returns the handles in seen that have been
// deactivated since the session spliced them in.
func inactiveHandles(seen map[*Handle]bool) []*Handle {
	regMu.Lock()
	var dead []*Handle
	for h := range seen {
		if !h.active {
			dead = append(dead, h)
		}
	}
	regMu.Unlock()
	return dead
}

// activeHandles returns the registered handles not in seen.
func activeHandles(seen map[*Handle]bool) []*Handle {
	regMu.Lock()
	var acc []*Handle
	for _, h := range regHandles {
		if !seen[h] {
			acc = append(acc, h)
		}
	}
	regMu.Unlock()
	return acc
}
