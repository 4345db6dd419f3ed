// Package workload gives the operator a handle on the UPF workload container:
// file pushes, command execution and Pebble service management, all carried
// over the Kubernetes pod exec subresource.
package workload

import (
	"context"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// Ref identifies the container a workload operation targets.
type Ref struct {
	Namespace string
	Pod       string
	Container string
}

func (r Ref) String() string {
	return r.Namespace + "/" + r.Pod + "/" + r.Container
}

// Client is the minimal container-runtime contract the reconciler needs.
// PodExecClient implements it against a live cluster; tests substitute fakes.
type Client interface {
	// CanConnect reports whether the container is running and ready to accept
	// exec sessions. A missing pod is not an error.
	CanConnect(ctx context.Context, ref Ref) (bool, error)

	// WriteFile writes content to path inside the container, creating parent
	// directories as needed.
	WriteFile(ctx context.Context, ref Ref, path string, content []byte) error

	// Exec runs a command inside the container and returns its combined
	// standard output. A non-zero exit is returned as an *ExitError.
	Exec(ctx context.Context, ref Ref, command ...string) (string, error)
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d: %s",
		strings.Join(e.Command, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// ServiceLayer is a Pebble configuration layer declaring the services the
// workload container should run.
type ServiceLayer struct {
	Summary     string             `json:"summary,omitempty"`
	Description string             `json:"description,omitempty"`
	Services    map[string]Service `json:"services"`
}

// Service is a single Pebble service definition.
type Service struct {
	Override    string            `json:"override"`
	Startup     string            `json:"startup"`
	Command     string            `json:"command"`
	Environment map[string]string `json:"environment,omitempty"`
}

// EnsureService merges the given layer into the container's Pebble plan and
// replans, starting or restarting services whose definition changed. Replan is
// a no-op when the running plan already matches, which keeps repeated
// reconciliations from disturbing a healthy UPF process.
func EnsureService(ctx context.Context, c Client, ref Ref, label string, layer ServiceLayer) error {
	data, err := yaml.Marshal(layer)
	if err != nil {
		return fmt.Errorf("failed to marshal %s layer: %w", label, err)
	}

	layerPath := "/tmp/" + label + "-layer.yaml"
	if err := c.WriteFile(ctx, ref, layerPath, data); err != nil {
		return fmt.Errorf("failed to push %s layer: %w", label, err)
	}

	if _, err := c.Exec(ctx, ref, "pebble", "add-layer", "--combine", label, layerPath); err != nil {
		return fmt.Errorf("failed to add %s layer: %w", label, err)
	}

	if _, err := c.Exec(ctx, ref, "pebble", "replan"); err != nil {
		return fmt.Errorf("failed to replan %s services: %w", label, err)
	}

	return nil
}
