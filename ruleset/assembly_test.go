package ruleset

import (
	"testing"

	"github.com/refurbd/ctoengine/cto"
)

// TestAssemblyTasks_CanonicalOrder verifies tasks come out in the
// fixed installation order regardless of component order, with RUN_QA
// last.
func TestAssemblyTasks_CanonicalOrder(t *testing.T) {
	tasks := AssemblyTasks([]cto.Component{
		{Type: cto.ComponentGPU, Reference: "A100", Quantity: 1},
		{Type: cto.ComponentCPU, Reference: "XEON", Quantity: 2},
		{Type: cto.ComponentRAM, Reference: "DDR4", Quantity: 8},
	})

	want := []AssemblyTask{"INSTALL_CPU", "INSTALL_RAM", "INSTALL_GPU", TaskRunQA}
	if len(tasks) != len(want) {
		t.Fatalf("Expected %d tasks, got %d: %v", len(want), len(tasks), tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("Task %d: expected %s, got %s", i, want[i], tasks[i])
		}
	}
}

// TestAssemblyTasks_DuplicateTypes verifies multiple lines of one type
// yield a single install task.
func TestAssemblyTasks_DuplicateTypes(t *testing.T) {
	tasks := AssemblyTasks([]cto.Component{
		{Type: cto.ComponentSSD, Reference: "SSD-480", Quantity: 1},
		{Type: cto.ComponentSSD, Reference: "SSD-960", Quantity: 1},
	})

	if len(tasks) != 2 || tasks[0] != "INSTALL_SSD" || tasks[1] != TaskRunQA {
		t.Errorf("Expected [INSTALL_SSD RUN_QA], got %v", tasks)
	}
}

// TestAssemblyTasks_Empty verifies an empty component list still gets
// the QA task.
func TestAssemblyTasks_Empty(t *testing.T) {
	tasks := AssemblyTasks(nil)
	if len(tasks) != 1 || tasks[0] != TaskRunQA {
		t.Errorf("Expected [RUN_QA], got %v", tasks)
	}
}
