package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	nadv1 "github.com/k8snetworkplumbingwg/network-attachment-definition-client/pkg/apis/k8s.cni.cncf.io/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	upfv1alpha1 "github.com/telcoops/free5gc-upf-operator/api/upf/v1alpha1"
	"github.com/telcoops/free5gc-upf-operator/internal/config"
	"github.com/telcoops/free5gc-upf-operator/internal/netattach"
	"github.com/telcoops/free5gc-upf-operator/internal/workload"
)

const (
	testNamespace = "5g-core"
	testName      = "free5gc-upf"
)

type fakeWorkload struct {
	reachable  bool
	connectErr error
	ruleOutput string
	execErr    error
	files      map[string][]byte
	execs      [][]string
}

func newFakeWorkload(reachable bool) *fakeWorkload {
	return &fakeWorkload{reachable: reachable, files: map[string][]byte{}}
}

func (f *fakeWorkload) CanConnect(context.Context, workload.Ref) (bool, error) {
	return f.reachable, f.connectErr
}

func (f *fakeWorkload) WriteFile(_ context.Context, _ workload.Ref, path string, content []byte) error {
	f.files[path] = content
	return nil
}

func (f *fakeWorkload) Exec(_ context.Context, _ workload.Ref, command ...string) (string, error) {
	f.execs = append(f.execs, command)
	if f.execErr != nil {
		return "", f.execErr
	}

	if len(command) >= 3 && command[0] == "ip" && command[1] == "rule" && command[2] == "list" {
		return f.ruleOutput, nil
	}

	return "", nil
}

func testSettings() config.Settings {
	return config.Settings{
		ContainerName:   "free5gc-upf",
		ConfigDir:       "/free5gc/config",
		ConfigFileName:  "upfcfg.yaml",
		RequeueInterval: 10 * time.Second,
		InternalSubnet:  "10.1.0.0/16",
		UESubnet:        "10.1.0.0/17",
		DataInterface:   "n6",
		RouteTable:      "n6if",
		RouteTableID:    1200,
	}
}

func testScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	require.NoError(t, upfv1alpha1.AddToScheme(scheme))
	require.NoError(t, nadv1.AddToScheme(scheme))

	return scheme
}

func testUPFConfig() *upfv1alpha1.UPFConfig {
	return &upfv1alpha1.UPFConfig{
		ObjectMeta: metav1.ObjectMeta{
			Name:       testName,
			Namespace:  testNamespace,
			Finalizers: []string{Finalizer},
		},
		Spec: upfv1alpha1.UPFConfigSpec{
			N3: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.4/29", Gateway: "5.6.7.1", Interface: "ens3"},
			N4: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.5/29", Gateway: "5.6.7.2", Interface: "ens4"},
			N6: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.6/29", Gateway: "5.6.7.3", Interface: "ens6"},
		},
	}
}

func testStatefulSet() *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: testName, Namespace: testNamespace},
	}
}

type callCounts struct {
	creates int
	patches int
	deletes int
}

func newReconciler(t *testing.T, wl workload.Client, objs ...client.Object) (*UPFConfigReconciler, *callCounts) {
	t.Helper()

	scheme := testScheme(t)
	counts := &callCounts{}

	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&upfv1alpha1.UPFConfig{}).
		WithInterceptorFuncs(interceptor.Funcs{
			Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				counts.creates++
				return c.Create(ctx, obj, opts...)
			},
			Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
				counts.patches++
				return c.Patch(ctx, obj, patch, opts...)
			},
			Delete: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
				counts.deletes++
				return c.Delete(ctx, obj, opts...)
			},
		}).
		Build()

	return &UPFConfigReconciler{
		Client:   fakeClient,
		Scheme:   scheme,
		Workload: wl,
		Settings: testSettings(),
	}, counts
}

func reconcileRequest() ctrl.Request {
	return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: testName}}
}

func getUPFConfig(t *testing.T, c client.Client) *upfv1alpha1.UPFConfig {
	t.Helper()

	upfConfig := &upfv1alpha1.UPFConfig{}
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: testName}, upfConfig))

	return upfConfig
}

func TestReconcileFirstRunCreatesEverything(t *testing.T) {
	wl := newFakeWorkload(true)
	r, counts := newReconciler(t, wl, testUPFConfig(), testStatefulSet())

	result, err := r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)
	assert.Zero(t, result.RequeueAfter)

	// Config file pushed with the N3 and N4 addresses, never the N6 one.
	content, ok := wl.files["/free5gc/config/upfcfg.yaml"]
	require.True(t, ok)
	assert.Contains(t, string(content), "1.2.3.4")
	assert.Contains(t, string(content), "1.2.3.5")
	assert.NotContains(t, string(content), "1.2.3.6")

	// The DNN pool is the UE half of the routed subnet, NATed out of n6.
	assert.Contains(t, string(content), "10.1.0.0/17")
	assert.Contains(t, string(content), "natifname: n6")

	// All three network attachments created.
	assert.Equal(t, 3, counts.creates)
	for _, name := range netattach.Names() {
		nad := &nadv1.NetworkAttachmentDefinition{}
		require.NoError(t, r.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: name}, nad))
		assert.Contains(t, nad.Spec.Config, "macvlan")
		assert.Contains(t, nad.Spec.Config, "tuning")
	}

	// StatefulSet annotated with the three networks in order N3, N6, N4.
	statefulSet := &appsv1.StatefulSet{}
	require.NoError(t, r.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: testName}, statefulSet))
	value := statefulSet.Spec.Template.Annotations[netattach.AnnotationKey]
	require.NotEmpty(t, value)

	var entries []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(value), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, netattach.N3Name, entries[0].Name)
	assert.Equal(t, netattach.N6Name, entries[1].Name)
	assert.Equal(t, netattach.N4Name, entries[2].Name)
	assert.Equal(t, 1, counts.patches)

	// Routing probe followed by the five-command sequence, then the service layer.
	require.GreaterOrEqual(t, len(wl.execs), 8)
	assert.Equal(t, []string{"ip", "rule", "list"}, wl.execs[0])
	assert.Equal(t, "iptables-legacy", wl.execs[1][0])
	assert.Equal(t, []string{"iptables-legacy", "-A", "FORWARD", "-j", "ACCEPT"}, wl.execs[1])
	assert.Equal(t, []string{"ip", "rule", "add", "from", "10.1.0.0/16", "table", "n6if"}, wl.execs[4])
	assert.Equal(t, []string{"ip", "route", "add", "default", "via", "5.6.7.3", "dev", "n6", "table", "n6if"}, wl.execs[5])
	assert.Equal(t, []string{"pebble", "add-layer", "--combine", "free5gc-upf", "/tmp/free5gc-upf-layer.yaml"}, wl.execs[6])
	assert.Equal(t, []string{"pebble", "replan"}, wl.execs[7])

	// Layer YAML pushed alongside the config file.
	assert.Contains(t, wl.files, "/tmp/free5gc-upf-layer.yaml")

	assert.Equal(t, upfv1alpha1.PhaseActive, getUPFConfig(t, r.Client).Status.Phase)
}

func TestReconcileSecondRunIsIdempotent(t *testing.T) {
	upfConfig := testUPFConfig()

	statefulSet := testStatefulSet()
	annotation, err := netattach.AnnotationValue(upfConfig.Spec)
	require.NoError(t, err)
	statefulSet.Spec.Template.Annotations = map[string]string{netattach.AnnotationKey: annotation}

	objs := []client.Object{upfConfig, statefulSet}
	for _, name := range netattach.Names() {
		nad, err := netattach.Definition(name, testNamespace, upfConfig.Spec.N3)
		require.NoError(t, err)
		objs = append(objs, nad)
	}

	wl := newFakeWorkload(true)
	wl.ruleOutput = "32765:\tfrom 10.1.0.0/16 table n6if\n"

	r, counts := newReconciler(t, wl, objs...)

	_, err = r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)

	assert.Zero(t, counts.creates)
	assert.Zero(t, counts.patches)
	assert.Zero(t, counts.deletes)

	// Config file is always rewritten; the rule sequence is not re-applied, and
	// the layer/replan pair is declared again (a no-op inside Pebble).
	assert.Contains(t, wl.files, "/free5gc/config/upfcfg.yaml")
	require.Len(t, wl.execs, 3)
	assert.Equal(t, []string{"ip", "rule", "list"}, wl.execs[0])
	assert.Equal(t, "pebble", wl.execs[1][0])
	assert.Equal(t, []string{"pebble", "replan"}, wl.execs[2])

	assert.Equal(t, upfv1alpha1.PhaseActive, getUPFConfig(t, r.Client).Status.Phase)
}

func TestReconcileWaitsForWorkload(t *testing.T) {
	wl := newFakeWorkload(false)
	r, counts := newReconciler(t, wl, testUPFConfig(), testStatefulSet())

	result, err := r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)

	assert.Equal(t, testSettings().RequeueInterval, result.RequeueAfter)
	assert.Empty(t, wl.files)
	assert.Empty(t, wl.execs)
	assert.Zero(t, counts.creates)
	assert.Zero(t, counts.patches)

	upfConfig := getUPFConfig(t, r.Client)
	assert.Equal(t, upfv1alpha1.PhaseWaiting, upfConfig.Status.Phase)
	assert.Equal(t, "waiting for workload container to be ready", upfConfig.Status.Message)
}

func TestReconcileLookupFailureDoesNotCreate(t *testing.T) {
	scheme := testScheme(t)
	boom := apierrors.NewInternalError(fmt.Errorf("etcd timeout"))
	creates := 0

	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(testUPFConfig(), testStatefulSet()).
		WithStatusSubresource(&upfv1alpha1.UPFConfig{}).
		WithInterceptorFuncs(interceptor.Funcs{
			Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
				if _, ok := obj.(*nadv1.NetworkAttachmentDefinition); ok {
					return boom
				}
				return c.Get(ctx, key, obj, opts...)
			},
			Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				creates++
				return c.Create(ctx, obj, opts...)
			},
		}).
		Build()

	r := &UPFConfigReconciler{
		Client:   fakeClient,
		Scheme:   scheme,
		Workload: newFakeWorkload(true),
		Settings: testSettings(),
	}

	_, err := r.Reconcile(context.Background(), reconcileRequest())
	require.Error(t, err)

	assert.Zero(t, creates)
	assert.Equal(t, upfv1alpha1.PhaseError, getUPFConfig(t, r.Client).Status.Phase)
}

func TestReconcileDeleteRemovesNetworkAttachments(t *testing.T) {
	now := metav1.Now()
	upfConfig := testUPFConfig()
	upfConfig.DeletionTimestamp = &now

	objs := []client.Object{upfConfig}
	for _, name := range netattach.Names() {
		nad, err := netattach.Definition(name, testNamespace, upfConfig.Spec.N3)
		require.NoError(t, err)
		objs = append(objs, nad)
	}

	wl := newFakeWorkload(true)
	r, counts := newReconciler(t, wl, objs...)

	_, err := r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, counts.deletes)
	for _, name := range netattach.Names() {
		nad := &nadv1.NetworkAttachmentDefinition{}
		err := r.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: name}, nad)
		assert.True(t, apierrors.IsNotFound(err), "expected %s to be deleted", name)
	}

	// No workload interaction on removal.
	assert.Empty(t, wl.execs)
	assert.Empty(t, wl.files)
}

func TestReconcileDeleteToleratesMissingAttachments(t *testing.T) {
	now := metav1.Now()
	upfConfig := testUPFConfig()
	upfConfig.DeletionTimestamp = &now

	wl := newFakeWorkload(true)
	r, counts := newReconciler(t, wl, upfConfig)

	_, err := r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, counts.deletes)
}

func TestReconcileGoneObjectIsANoOp(t *testing.T) {
	wl := newFakeWorkload(true)
	r, counts := newReconciler(t, wl)

	result, err := r.Reconcile(context.Background(), reconcileRequest())
	require.NoError(t, err)
	assert.Zero(t, result.RequeueAfter)
	assert.Zero(t, counts.creates)
	assert.Empty(t, wl.execs)
}
