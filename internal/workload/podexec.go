package workload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
)

const dialAttempts = 3

// PodExecClient implements Client over the pod exec subresource.
type PodExecClient struct {
	kube       kubernetes.Interface
	restConfig *rest.Config
	log        logr.Logger
}

// NewPodExecClient builds a PodExecClient from a rest config.
func NewPodExecClient(restConfig *rest.Config, log logr.Logger) (*PodExecClient, error) {
	kube, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes client: %w", err)
	}

	return &PodExecClient{kube: kube, restConfig: restConfig, log: log}, nil
}

// CanConnect reports whether the target container exists and is ready.
func (c *PodExecClient) CanConnect(ctx context.Context, ref Ref) (bool, error) {
	pod, err := c.kube.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Pod, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to get pod %s/%s: %w", ref.Namespace, ref.Pod, err)
	}

	if pod.Status.Phase != corev1.PodRunning {
		return false, nil
	}

	for _, status := range pod.Status.ContainerStatuses {
		if status.Name == ref.Container {
			return status.Ready, nil
		}
	}

	return false, nil
}

// WriteFile streams content into the container through a shell pipeline.
func (c *PodExecClient) WriteFile(ctx context.Context, ref Ref, filePath string, content []byte) error {
	dir := path.Dir(filePath)
	pipeline := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(dir), shellQuote(filePath))

	_, err := c.stream(ctx, ref, []string{"sh", "-c", pipeline}, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", filePath, ref, err)
	}

	c.log.V(1).Info("wrote file into workload container", "path", filePath, "bytes", len(content))

	return nil
}

// Exec runs a command inside the container and returns its stdout.
func (c *PodExecClient) Exec(ctx context.Context, ref Ref, command ...string) (string, error) {
	return c.stream(ctx, ref, command, nil)
}

func (c *PodExecClient) stream(ctx context.Context, ref Ref, command []string, stdin io.Reader) (string, error) {
	req := c.kube.CoreV1().RESTClient().
		Post().
		Namespace(ref.Namespace).
		Resource("pods").
		Name(ref.Pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: ref.Container,
			Command:   command,
			Stdin:     stdin != nil,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	var stdout, stderr bytes.Buffer

	// Transport hiccups while dialing the exec stream are retried; command
	// failures are not.
	err := retry.Do(
		func() error {
			stdout.Reset()
			stderr.Reset()

			executor, err := remotecommand.NewSPDYExecutor(c.restConfig, http.MethodPost, req.URL())
			if err != nil {
				return err
			}

			return executor.StreamWithContext(ctx, remotecommand.StreamOptions{
				Stdin:  stdin,
				Stdout: &stdout,
				Stderr: &stderr,
			})
		},
		retry.Context(ctx),
		retry.Attempts(dialAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var codeErr utilexec.CodeExitError
			return !errors.As(err, &codeErr)
		}),
	)
	if err != nil {
		var codeErr utilexec.CodeExitError
		if errors.As(err, &codeErr) {
			return stdout.String(), &ExitError{
				Command:  command,
				ExitCode: codeErr.ExitStatus(),
				Stderr:   stderr.String(),
			}
		}

		return stdout.String(), fmt.Errorf("failed to exec in %s: %w", ref, err)
	}

	return stdout.String(), nil
}

// shellQuote wraps s in single quotes so it survives the sh -c pipeline.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
