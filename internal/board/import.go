package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
)

// importFile is the YAML shape accepted by taskdeck import.
type importFile struct {
	Tasks []importTask `yaml:"tasks"`
}

type importTask struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Column      string `yaml:"column"`
	Repo        string `yaml:"repo"`
	Branch      string `yaml:"branch"`
	Agent       string `yaml:"agent"`
}

// ImportYAML bulk-creates tasks from a YAML file and returns the created
// tasks in file order. Tasks are validated up front; nothing is written
// when any entry is invalid.
func (s *Store) ImportYAML(path string) ([]contracts.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}

	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks in %s", path)
	}

	for i, t := range file.Tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("task %d: title is required", i+1)
		}
		if t.Column != "" && !contracts.ValidColumn(t.Column) {
			return nil, fmt.Errorf("task %d: unknown column %q", i+1, t.Column)
		}
	}

	created := make([]contracts.Task, 0, len(file.Tasks))
	for _, t := range file.Tasks {
		task, err := s.Add(contracts.TaskCreateRequest{
			Title:       t.Title,
			Description: t.Description,
			Column:      t.Column,
			Repo:        t.Repo,
			Branch:      t.Branch,
			Agent:       t.Agent,
		})
		if err != nil {
			return created, err
		}
		created = append(created, task)
	}
	return created, nil
}
