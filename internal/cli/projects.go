package cli

import (
	"context"

	"github.com/spf13/cobra"

	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/model"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	addListVerbs(cmd, app, listKind{
		noun: "project",
		prepare: func(ctx context.Context, s *session) (model.State, error) {
			return s.settled(ctx)
		},
		path:  func(model.State) string { return model.ProjectsPath },
		items: func(st model.State) []string { return st.Projects },
		add: func(c *controller.Controller, name string) error {
			c.SetPendingProjectName(name)
			c.AddProject()
			return nil
		},
		up: func(c *controller.Controller, i int) error {
			c.MoveProjectUp(i)
			return nil
		},
		down: func(c *controller.Controller, i int) error {
			c.MoveProjectDown(i)
			return nil
		},
		move: func(c *controller.Controller, from, to int) error {
			c.MoveProject(from, to)
			return nil
		},
		delete: func(c *controller.Controller, i int) error {
			c.DeleteProject(i)
			return nil
		},
	})
	return cmd
}
