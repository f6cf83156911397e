package overlay

import (
	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/selector"
)

// Overlay is a set of handlers applied to a session for the duration
// of one scope.  Build one with the helper methods, then run code
// under it with Do.
type Overlay struct {
	handlers []interpret.Accumulator
}

// New returns an overlay carrying the given handlers.
func New(handlers ...interpret.Accumulator) *Overlay {
	return &Overlay{handlers: handlers}
}

// Fork returns a copy; additions to the copy leave the original alone.
func (o *Overlay) Fork() *Overlay {
	return &Overlay{handlers: append([]interpret.Accumulator{}, o.handlers...)}
}

// Add appends handlers.
func (o *Overlay) Add(handlers ...interpret.Accumulator) *Overlay {
	o.handlers = append(o.handlers, handlers...)
	return o
}

// OnEach fires fn each time the pattern's focal variable is set.
func (o *Overlay) OnEach(pattern *selector.Call, fn interpret.Handler) *Overlay {
	return o.Add(interpret.NewImmediate(pattern, interpret.Events{Trigger: fn}))
}

// OnTotal fires fn when the pattern's outer call exits, once per focal
// occurrence, with everything accumulated along that occurrence's path.
func (o *Overlay) OnTotal(pattern *selector.Call, fn interpret.Handler) *Overlay {
	return o.Add(interpret.NewTotal(pattern, interpret.Events{Close: fn}))
}

// Tap collects the capture snapshot of every match into the returned
// slice.  Read it after Do returns.
func (o *Overlay) Tap(pattern *selector.Call) *[]interpret.Captures {
	dest := &[]interpret.Captures{}
	o.OnEach(pattern, func(caps interpret.Captures) error {
		*dest = append(*dest, caps)
		return nil
	})
	return dest
}

// Tweak overrides each pattern's focal variable with a constant.
func (o *Overlay) Tweak(values map[*selector.Call]interface{}) *Overlay {
	for pattern, value := range values {
		value := value
		o.Add(interpret.NewImmediate(pattern, interpret.Events{
			Intercept: func(interpret.Captures) (interface{}, error) {
				return value, nil
			},
		}))
	}
	return o
}

// Rewrite overrides each pattern's focal variable with a function of
// the current captures (return Absent to leave the value alone).
func (o *Overlay) Rewrite(rewriters map[*selector.Call]interpret.Intercept) *Overlay {
	for pattern, fn := range rewriters {
		o.Add(interpret.NewImmediate(pattern, interpret.Events{Intercept: fn}))
	}
	return o
}

// Do runs body with the overlay's handlers active on the session.
func (o *Overlay) Do(s *Session, body func() error) error {
	restore := s.apply(o.handlers)
	defer restore()
	return body()
}
