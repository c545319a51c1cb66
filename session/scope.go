package session

// Scope holds the variable bindings shared by every test of one run.
// Bindings only grow; setting an existing name replaces its value.
type Scope struct {
	names  []string
	values map[string]any
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]any)}
}

// Set binds name to value.
func (s *Scope) Set(name string, value any) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}

	s.values[name] = value
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns the bound names in binding order.
func (s *Scope) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)

	return names
}

// Len returns the number of bindings.
func (s *Scope) Len() int { return len(s.names) }
