// Package controller owns the project and task lists, the selected project,
// and the two store subscriptions that keep them current.
//
// A Controller lives on an eventloop.Loop. Every exported method except New
// and Close must run on that loop (via Loop().Post or Loop().Do); store pushes
// are posted onto the same loop, so the state needs no locking.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"tasklist-cli/internal/eventloop"
	"tasklist-cli/internal/model"
	"tasklist-cli/internal/orderedlist"
	"tasklist-cli/internal/remote"
)

// SelectionPolicy decides what happens when the selected project disappears
// from the projects list.
type SelectionPolicy int

const (
	// SelectionReselect views the first remaining project, or clears the
	// selection when none is left.
	SelectionReselect SelectionPolicy = iota
	// SelectionClear drops the selection and the task list.
	SelectionClear
	// SelectionKeep leaves the stale name selected.
	SelectionKeep
)

func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch s {
	case "", "reselect":
		return SelectionReselect, nil
	case "clear":
		return SelectionClear, nil
	case "keep":
		return SelectionKeep, nil
	default:
		return 0, errors.New("invalid selection policy (expected reselect|clear|keep)")
	}
}

const DefaultWriteTimeout = 10 * time.Second

type Config struct {
	// Listener receives a snapshot after every state change, on the loop.
	Listener func(model.State)
	// OnError receives non-fatal errors (WriteError, SubscribeError from
	// automatic selection), on the loop.
	OnError      func(error)
	Logger       *slog.Logger
	Selection    SelectionPolicy
	WriteTimeout time.Duration
}

type Controller struct {
	store  remote.Store
	loop   *eventloop.Loop
	writes *eventloop.Loop
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	projects *orderedlist.Manager[string]
	tasks    *orderedlist.Manager[string]

	// Loop-owned.
	state       model.State
	target      string
	projectsSub remote.Subscription
	tasksSub    remote.Subscription
	tasksGen    uint64
	closed      bool
}

// New subscribes to the projects list. The loop must already be running.
// A failed subscription is returned as a *SubscribeError.
func New(ctx context.Context, store remote.Store, loop *eventloop.Loop, cfg Config) (*Controller, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	cctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:  store,
		loop:   loop,
		writes: eventloop.New(),
		cfg:    cfg,
		logger: cfg.Logger.With("component", "controller"),
		ctx:    cctx,
		cancel: cancel,
		state: model.State{
			Projects: []string{},
			Tasks:    []string{},
		},
	}
	c.projects = orderedlist.NewManager(c.commitProjects)
	c.tasks = orderedlist.NewManager(c.commitTasks)
	go func() { _ = c.writes.Run(cctx) }()

	var err error
	if derr := loop.Do(ctx, func() { err = c.start(ctx) }); derr != nil {
		err = derr
	}
	if err != nil {
		c.writes.Stop()
		cancel()
		return nil, err
	}
	return c, nil
}

func (c *Controller) start(ctx context.Context) error {
	sub, err := c.store.Subscribe(ctx, model.ProjectsPath, func(items []string) {
		c.loop.Post(func() { c.onProjects(items) })
	})
	if err != nil {
		return &SubscribeError{Path: model.ProjectsPath, Err: err}
	}
	c.projectsSub = sub
	c.notify()
	return nil
}

func (c *Controller) Loop() *eventloop.Loop { return c.loop }

// State returns a snapshot.
func (c *Controller) State() model.State { return c.state.Clone() }

func (c *Controller) SetPendingProjectName(name string) {
	c.state.PendingNewProjectName = name
	c.notify()
}

func (c *Controller) SetPendingTaskName(name string) {
	c.state.PendingNewTaskName = name
	c.notify()
}

// AddProject appends the pending project name as typed, then clears it.
func (c *Controller) AddProject() {
	c.projects.Append(c.state.Projects, c.state.PendingNewProjectName)
	c.state.PendingNewProjectName = ""
	c.notify()
}

func (c *Controller) MoveProjectUp(i int) bool {
	return c.changed(c.projects.MoveUp(c.state.Projects, i))
}

func (c *Controller) MoveProjectDown(i int) bool {
	return c.changed(c.projects.MoveDown(c.state.Projects, i))
}

func (c *Controller) MoveProject(from, to int) bool {
	return c.changed(c.projects.Move(c.state.Projects, from, to))
}

// DeleteProject removes the project row. Its task list stays in the store.
func (c *Controller) DeleteProject(i int) bool {
	return c.changed(c.projects.Delete(c.state.Projects, i))
}

// AddTask appends the pending task name to the current project, then clears it.
func (c *Controller) AddTask() error {
	if !c.state.Selected {
		return ErrNoProjectSelected
	}
	c.tasks.Append(c.state.Tasks, c.state.PendingNewTaskName)
	c.state.PendingNewTaskName = ""
	c.notify()
	return nil
}

func (c *Controller) MoveTaskUp(i int) (bool, error) {
	if !c.state.Selected {
		return false, ErrNoProjectSelected
	}
	return c.changed(c.tasks.MoveUp(c.state.Tasks, i)), nil
}

func (c *Controller) MoveTaskDown(i int) (bool, error) {
	if !c.state.Selected {
		return false, ErrNoProjectSelected
	}
	return c.changed(c.tasks.MoveDown(c.state.Tasks, i)), nil
}

func (c *Controller) MoveTask(from, to int) (bool, error) {
	if !c.state.Selected {
		return false, ErrNoProjectSelected
	}
	return c.changed(c.tasks.Move(c.state.Tasks, from, to)), nil
}

func (c *Controller) DeleteTask(i int) (bool, error) {
	if !c.state.Selected {
		return false, ErrNoProjectSelected
	}
	return c.changed(c.tasks.Delete(c.state.Tasks, i)), nil
}

// ViewProject switches to the project at index i. Out-of-range is a no-op.
func (c *Controller) ViewProject(ctx context.Context, i int) error {
	if i < 0 || i >= len(c.state.Projects) {
		return nil
	}
	return c.SelectProject(ctx, c.state.Projects[i])
}

// SelectProject switches to the named project. The old task subscription is
// closed before the new one is opened; currentProject and tasks change together
// when the new subscription first delivers.
func (c *Controller) SelectProject(ctx context.Context, name string) error {
	if c.closed {
		return remote.ErrClosed
	}
	if c.state.Switching && c.target == name {
		return nil
	}
	if !c.state.Switching && c.state.Selected && c.state.CurrentProject == name {
		return nil
	}
	return c.switchTo(ctx, name)
}

// Close tears down both subscriptions and waits for queued writes to finish.
// It must not be called from the loop.
func (c *Controller) Close(ctx context.Context) error {
	var subs []remote.Subscription
	teardown := func() {
		if c.closed {
			return
		}
		c.closed = true
		c.tasksGen++
		for _, s := range []remote.Subscription{c.tasksSub, c.projectsSub} {
			if s != nil {
				subs = append(subs, s)
			}
		}
		c.tasksSub, c.projectsSub = nil, nil
	}
	if err := c.loop.Do(ctx, teardown); err != nil {
		if !errors.Is(err, eventloop.ErrStopped) {
			return err
		}
		// The loop is gone; nothing else touches the state now.
		teardown()
	}
	for _, s := range subs {
		_ = s.Close()
	}

	c.writes.Stop()
	defer c.cancel()
	select {
	case <-c.writes.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) changed(ok bool) bool {
	if ok {
		c.notify()
	}
	return ok
}

func (c *Controller) commitProjects(next []string) {
	c.state.Projects = next
	c.write(model.ProjectsPath, next)
	c.reconcileSelection()
}

func (c *Controller) commitTasks(next []string) {
	c.state.Tasks = next
	c.write(model.TasksPath(c.state.CurrentProject), next)
}

func (c *Controller) onProjects(items []string) {
	if c.closed {
		return
	}
	c.state.Projects = items
	c.state.ProjectsLoaded = true
	c.reconcileSelection()
	c.notify()
}

func (c *Controller) onTasks(gen uint64, name string, items []string) {
	if c.closed || gen != c.tasksGen {
		c.logger.Debug("dropping push from closed task subscription", "project", name)
		return
	}
	c.state.CurrentProject = name
	c.state.Selected = true
	c.state.Switching = false
	c.state.Tasks = items
	c.target = ""
	// The project may have been removed while its subscription was opening.
	c.reconcileSelection()
	c.notify()
}

// reconcileSelection picks the first project when none is selected, and applies
// the selection policy when the selected project is gone.
func (c *Controller) reconcileSelection() {
	if c.closed || c.state.Switching || !c.state.ProjectsLoaded {
		return
	}
	projects := c.state.Projects
	if !c.state.Selected {
		if len(projects) > 0 {
			c.autoSwitch(projects[0])
		}
		return
	}
	if slices.Contains(projects, c.state.CurrentProject) {
		return
	}

	switch c.cfg.Selection {
	case SelectionKeep:
		return
	case SelectionReselect:
		if len(projects) > 0 {
			c.logger.Info("selected project removed, reselecting", "project", c.state.CurrentProject, "next", projects[0])
			c.autoSwitch(projects[0])
			return
		}
	}
	c.logger.Info("selected project removed, clearing selection", "project", c.state.CurrentProject)
	c.clearSelection()
}

func (c *Controller) autoSwitch(name string) {
	if err := c.switchTo(c.ctx, name); err != nil {
		c.reportError(err)
	}
}

func (c *Controller) switchTo(ctx context.Context, name string) error {
	c.tasksGen++
	gen := c.tasksGen
	if c.tasksSub != nil {
		_ = c.tasksSub.Close()
		c.tasksSub = nil
	}
	c.state.Switching = true
	c.target = name

	path := model.TasksPath(name)
	sub, err := c.store.Subscribe(ctx, path, func(items []string) {
		c.loop.Post(func() { c.onTasks(gen, name, items) })
	})
	if err != nil {
		c.clearSelection()
		return &SubscribeError{Path: path, Err: err}
	}
	c.tasksSub = sub
	c.logger.Debug("switched project", "project", name)
	c.notify()
	return nil
}

func (c *Controller) clearSelection() {
	c.tasksGen++
	if c.tasksSub != nil {
		_ = c.tasksSub.Close()
		c.tasksSub = nil
	}
	c.state.Selected = false
	c.state.Switching = false
	c.state.CurrentProject = ""
	c.state.Tasks = []string{}
	c.target = ""
	c.notify()
}

// write queues a Set on the writer loop so writes reach the store in the order
// they were made. The caller never waits.
func (c *Controller) write(path string, items []string) {
	items = model.CloneList(items)
	ok := c.writes.Post(func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.WriteTimeout)
		defer cancel()
		if err := c.store.Set(ctx, path, items); err != nil {
			werr := &WriteError{Path: path, Err: err}
			c.logger.Warn("write failed", "list", path, "error", err)
			c.loop.Post(func() { c.reportError(werr) })
		}
	})
	if !ok {
		c.logger.Debug("dropping write after close", "list", path)
	}
}

func (c *Controller) reportError(err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

func (c *Controller) notify() {
	if c.cfg.Listener != nil {
		c.cfg.Listener(c.state.Clone())
	}
}
