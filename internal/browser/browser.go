// Package browser is the interactive loop for picking or creating a remote
// target directory before a profile is finalized. It navigates through the
// remote session's cached listings and issues mkdir through the command
// channel.
package browser

import (
	"context"
	"fmt"
	"path"
	"strings"

	"remote-sync/internal/remotefs"
	"remote-sync/internal/sshx"
	"remote-sync/internal/xerr"

	"github.com/manifoldco/promptui"
)

// Action is what the user chose at one step of the loop.
type Action int

const (
	ActionEnter Action = iota // descend into a subdirectory
	ActionSelect
	ActionCreate
	ActionUp
	ActionCancel
)

// Step is one decision: the action plus, for Enter the directory name and
// for Create the new directory's name.
type Step struct {
	Action Action
	Name   string
}

// StepFunc presents the current path and its subdirectories and returns the
// user's decision. The default is a promptui menu; tests script it.
type StepFunc func(current string, subdirs []string) (Step, error)

// Browser runs the selection loop against one remote session.
type Browser struct {
	session *remotefs.Session
	step    StepFunc
}

func New(session *remotefs.Session, step StepFunc) *Browser {
	if step == nil {
		step = promptStep
	}
	return &Browser{session: session, step: step}
}

// Pick navigates from start until the user selects a directory or cancels.
// Cancellation is an expected outcome, not a failure: it returns ("", nil).
func (b *Browser) Pick(ctx context.Context, start string) (string, error) {
	current := normalize(start)

	for {
		entries, err := b.session.ListDirectory(ctx, current)
		if err != nil {
			return "", err
		}
		// files are irrelevant to directory selection
		var subdirs []string
		for _, e := range entries {
			if e.IsDir {
				subdirs = append(subdirs, e.Name)
			}
		}

		step, err := b.step(current, subdirs)
		if err != nil {
			// backing out of the menu is a cancellation, not a failure
			if xerr.HasCode(err, xerr.CodeCancelled) {
				return "", nil
			}
			return "", err
		}

		switch step.Action {
		case ActionSelect:
			return current, nil
		case ActionCancel:
			return "", nil
		case ActionUp:
			if current != "/" {
				current = path.Dir(current)
			}
		case ActionEnter:
			current = join(current, step.Name)
		case ActionCreate:
			name := strings.TrimSpace(step.Name)
			if name == "" || strings.ContainsAny(name, "/\x00") {
				return "", fmt.Errorf("invalid directory name %q", step.Name)
			}
			created := join(current, name)
			if err := b.mkdir(ctx, created); err != nil {
				return "", err
			}
			// the freshly created directory becomes the selection
			return created, nil
		}
	}
}

// mkdir issues a remote mkdir -p through the session's command channel,
// then drops the stale parent listing.
func (b *Browser) mkdir(ctx context.Context, dir string) error {
	ask, err := b.session.Negotiator().Ensure(ctx)
	if err != nil {
		return err
	}
	runner := b.session.Runner()
	if _, err := runner.Run(ctx, b.session.Target(), "mkdir -p "+sshx.ShellQuote(dir), ask, sshx.ShortTimeout); err != nil {
		return err
	}
	b.session.Invalidate(path.Dir(dir))
	return nil
}

// normalize keeps the browsing path absolute with no trailing slash except
// root.
func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") {
		return "/"
	}
	return path.Clean(p)
}

func join(dir, name string) string {
	return path.Clean(path.Join(dir, name))
}

// menu labels for the fixed actions
const (
	labelSelect = "✅ Select this directory"
	labelCreate = "📁 Create new directory here"
	labelUp     = "⬆  Go up one level"
	labelCancel = "❌ Cancel"
)

// promptStep renders one step as a promptui menu.
func promptStep(current string, subdirs []string) (Step, error) {
	items := []string{labelSelect, labelCreate}
	if current != "/" {
		items = append(items, labelUp)
	}
	items = append(items, labelCancel)
	for _, d := range subdirs {
		items = append(items, "📂 "+d)
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("Remote directory: %s", current),
		Items: items,
		Size:  12,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return Step{Action: ActionCancel}, nil
	}

	switch choice {
	case labelSelect:
		return Step{Action: ActionSelect}, nil
	case labelCreate:
		namePrompt := promptui.Prompt{Label: "New directory name"}
		name, err := namePrompt.Run()
		if err != nil {
			return Step{Action: ActionCancel}, nil
		}
		return Step{Action: ActionCreate, Name: name}, nil
	case labelUp:
		return Step{Action: ActionUp}, nil
	case labelCancel:
		return Step{Action: ActionCancel}, nil
	}
	return Step{Action: ActionEnter, Name: strings.TrimPrefix(choice, "📂 ")}, nil
}
