package cto

// ComponentType identifies a class of hardware component.
type ComponentType string

const (
	ComponentCPU  ComponentType = "CPU"
	ComponentRAM  ComponentType = "RAM"
	ComponentSSD  ComponentType = "SSD"
	ComponentHDD  ComponentType = "HDD"
	ComponentNIC  ComponentType = "NIC"
	ComponentGPU  ComponentType = "GPU"
	ComponentRAID ComponentType = "RAID"
)

// AssemblyOrder is the canonical installation order used when deriving
// warehouse tasks from a component list. This is fixed policy, not data.
var AssemblyOrder = []ComponentType{
	ComponentCPU,
	ComponentRAM,
	ComponentSSD,
	ComponentHDD,
	ComponentNIC,
	ComponentGPU,
	ComponentRAID,
}

// Component is a single hardware element requested in a configuration.
// Components have no identity of their own; within a list they are
// compared by (Type, Reference).
type Component struct {
	Type      ComponentType `json:"type"`
	Reference string        `json:"reference"`
	Quantity  int           `json:"quantity"`
}

// Severity classifies an explanation attached to a decision.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Explanation is a human-readable reason attached to an evaluation
// outcome, generated from a rule's message template.
type Explanation struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
