package cli

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/model"
)

func newTasksCmd(app *App) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands (on the selected project, or --project)",
	}
	cmd.PersistentFlags().StringVar(&project, "project", "", "Project name (default: the first project)")

	addListVerbs(cmd, app, listKind{
		noun: "task",
		prepare: func(ctx context.Context, s *session) (model.State, error) {
			st, err := s.settled(ctx)
			if err != nil {
				return st, err
			}
			if project == "" {
				if !st.Selected {
					return st, controller.ErrNoProjectSelected
				}
				return st, nil
			}
			if !slices.Contains(st.Projects, project) {
				return st, errNotFound("project", project)
			}
			return s.selectProject(ctx, project)
		},
		path:  func(st model.State) string { return model.TasksPath(st.CurrentProject) },
		items: func(st model.State) []string { return st.Tasks },
		add: func(c *controller.Controller, name string) error {
			c.SetPendingTaskName(name)
			return c.AddTask()
		},
		up: func(c *controller.Controller, i int) error {
			_, err := c.MoveTaskUp(i)
			return err
		},
		down: func(c *controller.Controller, i int) error {
			_, err := c.MoveTaskDown(i)
			return err
		},
		move: func(c *controller.Controller, from, to int) error {
			_, err := c.MoveTask(from, to)
			return err
		},
		delete: func(c *controller.Controller, i int) error {
			_, err := c.DeleteTask(i)
			return err
		},
	})
	return cmd
}
