package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/bukadown/pkg/app/screens"
	"github.com/kerbaras/bukadown/pkg/integrations"
	"github.com/kerbaras/bukadown/pkg/services"
	"github.com/pkg/errors"
)

type App struct {
	ctrl    *services.Controller
	epubDir string
}

// NewApp returns the terminal UI. Books exported from the browser are
// written to epubDir.
func NewApp(ctrl *services.Controller, epubDir string) *App {
	return &App{ctrl: ctrl, epubDir: epubDir}
}

// Run opens the library browser.
func (a *App) Run(ctx context.Context) error {
	lib, err := a.ctrl.Library()
	if err != nil {
		return err
	}
	if lib == nil {
		return errors.New("library is disabled")
	}
	model := screens.NewRootScreen(ctx, lib, integrations.NewEPubBuilder(a.epubDir))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// RunConversion runs conv while showing its progress. The report and error
// are those of the run.
func (a *App) RunConversion(ctx context.Context, conv *services.Converter, input, output string) (*services.Report, error) {
	model := screens.NewRunScreen(ctx, conv, input, output)
	_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	model.Wait()
	if err != nil && model.Err() == nil {
		return model.Report(), errors.WithStack(err)
	}
	return model.Report(), model.Err()
}
