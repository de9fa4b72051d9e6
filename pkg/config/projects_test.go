package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laforge-app/laforge/pkg/transfer"
)

func newTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	fs = afero.NewMemMapFs()
	return NewProjectStoreAt("/home/test/.laforge/projects.yaml")
}

func testProject(id, name string) Project {
	return Project{
		ID:        id,
		Name:      name,
		LocalPath: "/sites/" + name,
		Remote: transfer.Config{
			Host:     "ftp.example.com",
			Port:     21,
			Username: name,
			Protocol: transfer.ProtocolFTP,
		},
	}
}

func TestListEmptyRegistry(t *testing.T) {
	store := newTestStore(t)

	projects, err := store.List()
	assert.NoError(t, err)
	assert.Empty(t, projects)
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	project := testProject("proj-1", "acme")

	require.NoError(t, store.Save(project))

	got, err := store.Get("proj-1")
	assert.NoError(t, err)
	assert.Equal(t, project, got)

	_, err = store.Get("unknown")
	assert.Error(t, err)
}

func TestSaveReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testProject("proj-1", "acme")))

	updated := testProject("proj-1", "acme")
	updated.Client = "ACME Corp"
	require.NoError(t, store.Save(updated))

	projects, err := store.List()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "ACME Corp", projects[0].Client)
}

func TestListSortsByName(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testProject("proj-2", "zeta")))
	require.NoError(t, store.Save(testProject("proj-1", "acme")))

	projects, err := store.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "acme", projects[0].Name)
	assert.Equal(t, "zeta", projects[1].Name)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testProject("proj-1", "acme")))

	require.NoError(t, store.Delete("proj-1"))
	require.NoError(t, store.Delete("proj-1"))

	projects, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestSetLastSync(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testProject("proj-1", "acme")))

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSync("proj-1", at))

	got, err := store.Get("proj-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastSync)
	assert.True(t, at.Equal(*got.LastSync))

	assert.Error(t, store.SetLastSync("unknown", at))
}

func TestSetScheduleResult(t *testing.T) {
	store := newTestStore(t)
	project := testProject("proj-1", "acme")
	project.Schedule = &Schedule{Enabled: true, Type: ScheduleDaily, Hour: 3}
	require.NoError(t, store.Save(project))

	at := time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetScheduleResult("proj-1", at, "success"))

	got, err := store.Get("proj-1")
	require.NoError(t, err)
	require.NotNil(t, got.Schedule)
	assert.Equal(t, "success", got.Schedule.LastResult)
	require.NotNil(t, got.Schedule.LastRun)
	assert.True(t, at.Equal(*got.Schedule.LastRun))
}

func TestIncompatibleVersion(t *testing.T) {
	fs = afero.NewMemMapFs()
	path := "/home/test/.laforge/projects.yaml"
	require.NoError(t, afero.WriteFile(fs, path,
		[]byte("version: v9\nprojects: []\n"), 0644))

	store := NewProjectStoreAt(path)
	_, err := store.List()
	assert.Error(t, err)
}
