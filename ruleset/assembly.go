package ruleset

import "github.com/refurbd/ctoengine/cto"

// AssemblyTask is one warehouse work item derived from an accepted
// configuration.
type AssemblyTask string

// TaskRunQA always terminates a generated task list.
const TaskRunQA AssemblyTask = "RUN_QA"

// AssemblyTasks derives the task list for a component list: one
// INSTALL_<TYPE> task per present component type, emitted in the
// canonical order, terminated by RUN_QA. The ordering is fixed policy,
// not data-driven.
func AssemblyTasks(components []cto.Component) []AssemblyTask {
	present := make(map[cto.ComponentType]bool, len(components))
	for _, comp := range components {
		present[comp.Type] = true
	}

	tasks := make([]AssemblyTask, 0, len(present)+1)
	for _, t := range cto.AssemblyOrder {
		if present[t] {
			tasks = append(tasks, AssemblyTask("INSTALL_"+string(t)))
		}
	}
	return append(tasks, TaskRunQA)
}
