package model

import (
	"slices"
	"strings"
)

// ProjectsPath is the store path holding the ordered project names.
const ProjectsPath = "projects"

const tasksPrefix = "tasks/"

// TasksPath returns the store path holding the tasks of the named project.
// The name is used verbatim; backends escape it when mapping to keys.
func TasksPath(project string) string {
	return tasksPrefix + project
}

// ProjectFromTasksPath reports the project name encoded in a tasks path.
func ProjectFromTasksPath(path string) (string, bool) {
	if !strings.HasPrefix(path, tasksPrefix) {
		return "", false
	}
	return strings.TrimPrefix(path, tasksPrefix), true
}

// State is a point-in-time snapshot of the controller, safe to hand to renderers.
type State struct {
	Projects              []string `json:"projects"`
	Tasks                 []string `json:"tasks"`
	CurrentProject        string   `json:"currentProject"`
	Selected              bool     `json:"selected"`
	PendingNewTaskName    string   `json:"pendingNewTaskName"`
	PendingNewProjectName string   `json:"pendingNewProjectName"`

	// ProjectsLoaded flips once the first projects push has arrived.
	ProjectsLoaded bool `json:"projectsLoaded"`
	// Switching is set between a project switch and the first push of its task list.
	Switching bool `json:"switching"`
}

// Clone returns a deep copy so snapshots can cross goroutines.
func (s State) Clone() State {
	s.Projects = CloneList(s.Projects)
	s.Tasks = CloneList(s.Tasks)
	return s
}

// CloneList copies items, turning nil into an empty list.
func CloneList(items []string) []string {
	if items == nil {
		return []string{}
	}
	return slices.Clone(items)
}
