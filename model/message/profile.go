package message

// Status is a worker's availability as seen by the broker.
type Status string

const (
	StatusActive  Status = "active"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Capability is a named operation a worker advertises.
type Capability struct {
	Name         string                 `json:"name" yaml:"name"`
	Description  string                 `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
	Examples     []string               `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Profile describes a registered worker.
type Profile struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Capabilities []Capability           `json:"capabilities,omitempty"`
	Status       Status                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// CanHandle reports whether the profile advertises capability name.
func (p *Profile) CanHandle(name string) bool {
	return p.Capability(name) != nil
}

// Capability returns the named capability or nil.
func (p *Profile) Capability(name string) *Capability {
	if p == nil {
		return nil
	}
	for i := range p.Capabilities {
		if p.Capabilities[i].Name == name {
			return &p.Capabilities[i]
		}
	}
	return nil
}

// Clone returns a copy safe to hand out to callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	ret := *p
	ret.Capabilities = append([]Capability(nil), p.Capabilities...)
	ret.Metadata = copyMap(p.Metadata)
	return &ret
}
