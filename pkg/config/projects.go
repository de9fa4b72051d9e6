package config

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/laforge-app/laforge/pkg/errors"
	"github.com/laforge-app/laforge/pkg/transfer"
)

const (
	// ProjectsPath is the default path to the projects registry.
	ProjectsPath = "~/.laforge/projects.yaml"

	// InitialProjectsVersion is the first version of the projects registry.
	// Files that do not specify a version default to this version.
	InitialProjectsVersion = "v1alpha1"

	// SupportedProjectsVersion is the registry version understood by the
	// current binary.
	SupportedProjectsVersion = "v1alpha1"
)

// ScheduleType names the recurrence presets for automatic syncs.
type ScheduleType string

const (
	ScheduleHourly  ScheduleType = "hourly"
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleCustom  ScheduleType = "custom"
)

// Schedule configures automatic syncs for a project. The preset types
// derive a cron expression from Minute/Hour/Weekday/MonthDay; Custom uses
// CronExpression directly.
type Schedule struct {
	Enabled        bool         `json:"enabled"`
	Type           ScheduleType `json:"type"`
	Minute         int          `json:"minute"`
	Hour           int          `json:"hour"`
	Weekday        int          `json:"weekday"`
	CronExpression string       `json:"cronExpression,omitempty"`
	LastRun        *time.Time   `json:"lastRun,omitempty"`
	LastResult     string       `json:"lastResult,omitempty"`
}

// Project is one publishable site: a local directory plus the remote host
// it deploys to. The remote password is never stored here, it lives in the
// credential store keyed by project id.
type Project struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Client    string          `json:"client,omitempty"`
	LocalPath string          `json:"localPath"`
	Remote    transfer.Config `json:"remote"`
	LastSync  *time.Time      `json:"lastSync,omitempty"`
	Schedule  *Schedule       `json:"schedule,omitempty"`
}

type projectsFile struct {
	Version  string    `json:"version,omitempty"`
	Projects []Project `json:"projects,omitempty"`
}

func (f projectsFile) getVersion() string {
	return f.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ProjectStore reads and writes the on-disk project registry. Every method
// re-reads the file, so edits made by another process are picked up.
type ProjectStore struct {
	path string
}

// NewProjectStore opens the registry at the default path.
func NewProjectStore() (*ProjectStore, error) {
	path, err := homedirExpand(ProjectsPath)
	if err != nil {
		return nil, errors.WithContext(err, "expand projects path")
	}
	return NewProjectStoreAt(path), nil
}

// NewProjectStoreAt opens the registry at an explicit path.
func NewProjectStoreAt(path string) *ProjectStore {
	return &ProjectStore{path: path}
}

// List returns all registered projects sorted by name. A missing registry
// file is treated as an empty registry.
func (s *ProjectStore) List() ([]Project, error) {
	file, err := s.read()
	if err != nil {
		return nil, err
	}

	sort.Slice(file.Projects, func(i, j int) bool {
		return file.Projects[i].Name < file.Projects[j].Name
	})
	return file.Projects, nil
}

// Get returns the project with the given id.
func (s *ProjectStore) Get(id string) (Project, error) {
	file, err := s.read()
	if err != nil {
		return Project{}, err
	}

	for _, project := range file.Projects {
		if project.ID == id {
			return project, nil
		}
	}
	return Project{}, errors.NewFriendlyError(
		"No project with id %q is registered.\n"+
			"Run `laforge projects list` to see the registered projects.", id)
}

// Save inserts the project, or replaces the registered project with the
// same id.
func (s *ProjectStore) Save(project Project) error {
	file, err := s.read()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range file.Projects {
		if existing.ID == project.ID {
			file.Projects[i] = project
			replaced = true
			break
		}
	}
	if !replaced {
		file.Projects = append(file.Projects, project)
	}
	return s.write(file)
}

// Delete removes the project from the registry. Deleting an unknown id is
// not an error.
func (s *ProjectStore) Delete(id string) error {
	file, err := s.read()
	if err != nil {
		return err
	}

	kept := file.Projects[:0]
	for _, project := range file.Projects {
		if project.ID != id {
			kept = append(kept, project)
		}
	}
	file.Projects = kept
	return s.write(file)
}

// SetLastSync records the completion time of the project's latest
// successful sync.
func (s *ProjectStore) SetLastSync(id string, at time.Time) error {
	return s.mutate(id, func(project *Project) {
		project.LastSync = &at
	})
}

// SetScheduleResult records the outcome of a scheduled run on the
// project's schedule.
func (s *ProjectStore) SetScheduleResult(id string, at time.Time, result string) error {
	return s.mutate(id, func(project *Project) {
		if project.Schedule == nil {
			return
		}
		project.Schedule.LastRun = &at
		project.Schedule.LastResult = result
	})
}

func (s *ProjectStore) mutate(id string, fn func(*Project)) error {
	file, err := s.read()
	if err != nil {
		return err
	}

	for i := range file.Projects {
		if file.Projects[i].ID == id {
			fn(&file.Projects[i])
			return s.write(file)
		}
	}
	return errors.New("unknown project " + id)
}

func (s *ProjectStore) read() (projectsFile, error) {
	file := projectsFile{Version: InitialProjectsVersion}
	if err := parseConfig(s.path, &file, SupportedProjectsVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return projectsFile{Version: SupportedProjectsVersion}, nil
		}
		return projectsFile{}, errors.WithContext(err, "parse")
	}
	return file, nil
}

func (s *ProjectStore) write(file projectsFile) error {
	file.Version = SupportedProjectsVersion
	yamlBytes, err := yaml.Marshal(file)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.WithContext(err, "create config directory")
	}
	if err := afero.WriteFile(fs, s.path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}
