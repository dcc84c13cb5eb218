package composectl

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/stackvault/stackvault/pkg/plog"
)

// composeProjectLabel is the label compose sets on every container it owns.
const composeProjectLabel = "com.docker.compose.project"

// engineStopTimeoutSeconds is passed to the engine per container stop.
const engineStopTimeoutSeconds = 10

// EngineAPI controls stacks through the Docker Engine API directly. It can
// stop and inspect compose projects by label, but it cannot start them again
// because the engine has no knowledge of compose files. It exists so backups
// still work on hosts where the docker binary is missing.
type EngineAPI struct {
	cli client.APIClient
}

// NewEngineAPI wraps an engine client as a stack control backend.
func NewEngineAPI(cli client.APIClient) *EngineAPI {
	return &EngineAPI{cli: cli}
}

func (e *EngineAPI) projectContainers(ctx context.Context, stackPath string, all bool) ([]types.Container, error) {
	f := filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+ProjectLabel(stackPath)))
	return e.cli.ContainerList(ctx, container.ListOptions{All: all, Filters: f})
}

// IsRunning reports whether any container of the stack's compose project is
// in the running state.
func (e *EngineAPI) IsRunning(ctx context.Context, stackPath string) bool {
	containers, err := e.projectContainers(ctx, stackPath, false)
	if err != nil {
		plog.Warn("Engine API container probe failed",
			"stack", ProjectLabel(stackPath), "error", err)
		return false
	}
	for _, c := range containers {
		if c.State == "running" {
			return true
		}
	}
	return false
}

// StopProject performs the down-equivalent for the compose project: running
// containers are stopped, all project containers are removed and the project
// networks are cleaned up. Partial failures are logged per resource; the
// overall result follows the check semantics.
func (e *EngineAPI) StopProject(ctx context.Context, stackPath string, check bool) bool {
	project := ProjectLabel(stackPath)
	containers, err := e.projectContainers(ctx, stackPath, true)
	if err != nil {
		plog.Warn("Engine API container listing failed", "stack", project, "error", err)
		return !check
	}

	timeout := engineStopTimeoutSeconds
	ok := true
	for _, c := range containers {
		if c.State == "running" {
			if err := e.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
				plog.Warn("Engine API container stop failed",
					"stack", project, "container", shortID(c.ID), "error", err)
				ok = false
				continue
			}
		}
		if err := e.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			plog.Warn("Engine API container remove failed",
				"stack", project, "container", shortID(c.ID), "error", err)
			ok = false
		}
	}

	f := filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+project))
	networks, err := e.cli.NetworkList(ctx, network.ListOptions{Filters: f})
	if err != nil {
		plog.Warn("Engine API network listing failed", "stack", project, "error", err)
	} else {
		for _, n := range networks {
			if err := e.cli.NetworkRemove(ctx, n.ID); err != nil {
				plog.Warn("Engine API network remove failed",
					"stack", project, "network", n.Name, "error", err)
			}
		}
	}

	if ok {
		return true
	}
	return !check
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// StartProject is not possible through the Engine API alone; restarting a
// compose project needs the compose file and therefore the CLI.
func (e *EngineAPI) StartProject(ctx context.Context, stackPath string, check bool) bool {
	plog.Error("Cannot start stack without the docker CLI",
		"stack", ProjectLabel(stackPath))
	return !check
}
