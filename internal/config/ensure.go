package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// EnsureExists checks that a config file exists, offering to create a
// default one interactively when it does not. Returns false when the
// user declines.
func EnsureExists() (bool, error) {
	path, err := DefaultPath()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config: %w", err)
	}

	create := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("No config found at %s. Create one?", path)).
				Affirmative("Create").
				Negative("Quit").
				Value(&create),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("config prompt failed: %w", err)
	}
	if !create {
		return false, nil
	}

	cfg := CreateDefault(path)
	if err := cfg.Save(); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	fmt.Printf("Created %s - add your repos before spawning sessions.\n", path)
	return true, nil
}
