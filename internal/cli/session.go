package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/eventloop"
	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

const closeTimeout = 5 * time.Second

// session is a short-lived controller for one-shot commands: open, wait for
// the lists to arrive, apply one operation, then drain writes and close.
type session struct {
	store  remote.Store
	loop   *eventloop.Loop
	ctrl   *controller.Controller
	waiter *controller.Waiter

	mu   sync.Mutex
	errs []error
}

func (app *App) openSession(ctx context.Context) (*session, error) {
	st, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := controller.ParseSelectionPolicy(app.Selection)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	s := &session{store: st, loop: eventloop.New(), waiter: controller.NewWaiter()}
	go func() { _ = s.loop.Run(context.Background()) }()

	ctrl, err := controller.New(ctx, st, s.loop, controller.Config{
		Listener:  s.waiter.Listener,
		OnError:   s.noteErr,
		Logger:    app.log(),
		Selection: policy,
	})
	if err != nil {
		s.loop.Stop()
		_ = st.Close()
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

func (s *session) noteErr(err error) {
	// Automatic reselection failures surface through the state; only writes
	// decide the command's outcome.
	var werr *controller.WriteError
	if !errors.As(err, &werr) {
		return
	}
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// settled waits until the projects list has arrived and any automatic project
// switch has delivered its tasks.
func (s *session) settled(ctx context.Context) (model.State, error) {
	return s.waiter.Wait(ctx, func(st model.State) bool {
		return st.ProjectsLoaded && !st.Switching
	})
}

// selectProject switches to name and waits for its tasks.
func (s *session) selectProject(ctx context.Context, name string) (model.State, error) {
	var err error
	if derr := s.loop.Do(ctx, func() { err = s.ctrl.SelectProject(ctx, name) }); derr != nil {
		return model.State{}, derr
	}
	if err != nil {
		return model.State{}, err
	}
	return s.waiter.Wait(ctx, func(st model.State) bool {
		return !st.Switching && st.Selected && st.CurrentProject == name
	})
}

// do runs fn on the controller loop and returns the resulting state.
func (s *session) do(ctx context.Context, fn func(c *controller.Controller) error) (model.State, error) {
	var (
		err   error
		state model.State
	)
	derr := s.loop.Do(ctx, func() {
		err = fn(s.ctrl)
		state = s.ctrl.State()
	})
	if derr != nil {
		return model.State{}, derr
	}
	return state, err
}

// close drains queued writes and reports the first one that failed.
func (s *session) close(ctx context.Context) error {
	cerr := s.ctrl.Close(ctx)
	s.loop.Stop()
	select {
	case <-s.loop.Done():
	case <-ctx.Done():
	}
	serr := s.store.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return errors.Join(cerr, serr)
}
