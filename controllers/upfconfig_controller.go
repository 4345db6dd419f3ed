// Package controllers implements the reconciliation loop configuring the
// free5gc UPF workload.
package controllers

import (
	"context"
	"fmt"

	nadv1 "github.com/k8snetworkplumbingwg/network-attachment-definition-client/pkg/apis/k8s.cni.cncf.io/v1"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	upfv1alpha1 "github.com/telcoops/free5gc-upf-operator/api/upf/v1alpha1"
	"github.com/telcoops/free5gc-upf-operator/internal/config"
	"github.com/telcoops/free5gc-upf-operator/internal/netattach"
	"github.com/telcoops/free5gc-upf-operator/internal/routing"
	"github.com/telcoops/free5gc-upf-operator/internal/upf"
	"github.com/telcoops/free5gc-upf-operator/internal/workload"
)

// Finalizer guards UPFConfig deletion until the network attachments are
// removed from the cluster.
const Finalizer = "upf.free5gc.io/netattach-cleanup"

// UPFConfigReconciler reconciles a UPFConfig object against the cluster and
// the UPF workload container.
type UPFConfigReconciler struct {
	client.Client

	Scheme *runtime.Scheme

	// Workload is the exec handle on the UPF container.
	Workload workload.Client

	Settings config.Settings
}

//+kubebuilder:rbac:groups=upf.free5gc.io,resources=upfconfigs,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups=upf.free5gc.io,resources=upfconfigs/status,verbs=get;update;patch
//+kubebuilder:rbac:groups=upf.free5gc.io,resources=upfconfigs/finalizers,verbs=update
//+kubebuilder:rbac:groups=k8s.cni.cncf.io,resources=network-attachment-definitions,verbs=get;create;delete
//+kubebuilder:rbac:groups=apps,resources=statefulsets,verbs=get;patch
//+kubebuilder:rbac:groups="",resources=pods,verbs=get
//+kubebuilder:rbac:groups="",resources=pods/exec,verbs=create

// Reconcile drives the ordered idempotent sequence bringing the UPF workload
// to its configured state: config file, network attachments, StatefulSet
// annotation, routing rules, service layer. Each step re-derives "already
// done" from live state, so re-runs only repair what is missing.
func (r *UPFConfigReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	upfConfig := &upfv1alpha1.UPFConfig{}
	if err := r.Get(ctx, req.NamespacedName, upfConfig); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}

		return ctrl.Result{}, fmt.Errorf("failed to get UPFConfig: %w", err)
	}

	if !upfConfig.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, upfConfig)
	}

	if !controllerutil.ContainsFinalizer(upfConfig, Finalizer) {
		controllerutil.AddFinalizer(upfConfig, Finalizer)
		if err := r.Update(ctx, upfConfig); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer: %w", err)
		}
	}

	ref := r.workloadRef(upfConfig)

	reachable, err := r.Workload.CanConnect(ctx, ref)
	if err != nil {
		return r.failed(ctx, upfConfig, fmt.Errorf("failed to probe workload container: %w", err))
	}

	if !reachable {
		logger.Info("workload container not ready, deferring", "pod", ref.Pod)
		reconcilesTotal.WithLabelValues(outcomeWaiting).Inc()

		if err := r.setPhase(ctx, upfConfig, upfv1alpha1.PhaseWaiting, "waiting for workload container to be ready"); err != nil {
			return ctrl.Result{}, err
		}

		return ctrl.Result{RequeueAfter: r.Settings.RequeueInterval}, nil
	}

	// Rendering is cheap and deterministic, so the config file is always
	// overwritten rather than existence-checked.
	if err := r.writeUPFConfig(ctx, upfConfig, ref); err != nil {
		return r.failed(ctx, upfConfig, err)
	}

	attachments := []struct {
		name  string
		iface upfv1alpha1.NetworkInterfaceSpec
	}{
		{netattach.N3Name, upfConfig.Spec.N3},
		{netattach.N4Name, upfConfig.Spec.N4},
		{netattach.N6Name, upfConfig.Spec.N6},
	}
	for _, attachment := range attachments {
		if err := r.ensureNetworkAttachment(ctx, upfConfig, attachment.name, attachment.iface); err != nil {
			return r.failed(ctx, upfConfig, err)
		}
	}

	if err := r.ensureStatefulSetNetworks(ctx, upfConfig); err != nil {
		return r.failed(ctx, upfConfig, err)
	}

	if err := r.ensureRoutingRules(ctx, upfConfig, ref); err != nil {
		return r.failed(ctx, upfConfig, err)
	}

	if err := r.ensureUPFService(ctx, ref); err != nil {
		return r.failed(ctx, upfConfig, err)
	}

	reconcilesTotal.WithLabelValues(outcomeActive).Inc()

	if err := r.setPhase(ctx, upfConfig, upfv1alpha1.PhaseActive, "UPF configured"); err != nil {
		return ctrl.Result{}, err
	}

	logger.Info("reconciled UPF configuration", "pod", ref.Pod)

	return ctrl.Result{}, nil
}

// reconcileDelete removes the three network attachments and then releases the
// finalizer. Deleting an attachment that is already gone counts as success so
// removal stays idempotent.
func (r *UPFConfigReconciler) reconcileDelete(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	if !controllerutil.ContainsFinalizer(upfConfig, Finalizer) {
		return ctrl.Result{}, nil
	}

	for _, name := range netattach.Names() {
		nad := &nadv1.NetworkAttachmentDefinition{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: upfConfig.Namespace},
		}
		if err := r.Delete(ctx, nad); client.IgnoreNotFound(err) != nil {
			reconcilesTotal.WithLabelValues(outcomeError).Inc()
			return ctrl.Result{}, fmt.Errorf("failed to delete network attachment %s: %w", name, err)
		}

		logger.Info("deleted network attachment", "name", name)
	}

	controllerutil.RemoveFinalizer(upfConfig, Finalizer)
	if err := r.Update(ctx, upfConfig); err != nil {
		return ctrl.Result{}, fmt.Errorf("failed to remove finalizer: %w", err)
	}

	reconcilesTotal.WithLabelValues(outcomeRemoved).Inc()

	return ctrl.Result{}, nil
}

// writeUPFConfig renders upfcfg.yaml and pushes it into the container.
func (r *UPFConfigReconciler) writeUPFConfig(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig, ref workload.Ref) error {
	content, err := upf.RenderConfig(upfConfig.Spec, r.Settings.UESubnet, r.Settings.DataInterface)
	if err != nil {
		return fmt.Errorf("failed to render UPF config: %w", err)
	}

	if err := r.Workload.WriteFile(ctx, ref, r.Settings.ConfigPath(), content); err != nil {
		return fmt.Errorf("failed to push UPF config: %w", err)
	}

	log.FromContext(ctx).V(1).Info("pushed UPF config file", "path", r.Settings.ConfigPath())

	return nil
}

// ensureNetworkAttachment creates the named NetworkAttachmentDefinition if it
// does not exist. Only NotFound is read as "needs creation"; any other lookup
// failure is surfaced so the reconciliation is retried instead of racing a
// duplicate create against a flaky API server.
func (r *UPFConfigReconciler) ensureNetworkAttachment(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig, name string, iface upfv1alpha1.NetworkInterfaceSpec) error {
	logger := log.FromContext(ctx)

	existing := &nadv1.NetworkAttachmentDefinition{}
	err := r.Get(ctx, types.NamespacedName{Namespace: upfConfig.Namespace, Name: name}, existing)
	if err == nil {
		logger.V(1).Info("network attachment already exists", "name", name)
		return nil
	}

	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to get network attachment %s: %w", name, err)
	}

	nad, err := netattach.Definition(name, upfConfig.Namespace, iface)
	if err != nil {
		return err
	}

	if err := r.Create(ctx, nad); err != nil {
		return fmt.Errorf("failed to create network attachment %s: %w", name, err)
	}

	logger.Info("created network attachment", "name", name)

	return nil
}

// ensureStatefulSetNetworks merge-patches the Multus annotation onto the UPF
// StatefulSet's pod template when it is not there yet. The annotation is never
// rewritten once present.
func (r *UPFConfigReconciler) ensureStatefulSetNetworks(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig) error {
	logger := log.FromContext(ctx)

	statefulSet := &appsv1.StatefulSet{}
	key := types.NamespacedName{Namespace: upfConfig.Namespace, Name: upfConfig.Name}
	if err := r.Get(ctx, key, statefulSet); err != nil {
		return fmt.Errorf("failed to get StatefulSet %s: %w", key.Name, err)
	}

	if _, ok := statefulSet.Spec.Template.Annotations[netattach.AnnotationKey]; ok {
		logger.V(1).Info("StatefulSet already carries the networks annotation")
		return nil
	}

	value, err := netattach.AnnotationValue(upfConfig.Spec)
	if err != nil {
		return err
	}

	original := statefulSet.DeepCopy()
	if statefulSet.Spec.Template.Annotations == nil {
		statefulSet.Spec.Template.Annotations = map[string]string{}
	}
	statefulSet.Spec.Template.Annotations[netattach.AnnotationKey] = value

	if err := r.Patch(ctx, statefulSet, client.MergeFrom(original)); err != nil {
		return fmt.Errorf("failed to patch StatefulSet %s: %w", key.Name, err)
	}

	logger.Info("added networks annotation to StatefulSet", "statefulset", key.Name)

	return nil
}

// ensureRoutingRules probes for the policy routing marker and applies the NAT
// and routing sequence when it is missing.
func (r *UPFConfigReconciler) ensureRoutingRules(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig, ref workload.Ref) error {
	logger := log.FromContext(ctx)

	rules := routing.Rules{
		Subnet:    r.Settings.InternalSubnet,
		Interface: r.Settings.DataInterface,
		Table:     r.Settings.RouteTable,
		TableID:   r.Settings.RouteTableID,
		Gateway:   upfConfig.Spec.N6.Gateway,
	}

	exist, err := routing.Exist(ctx, r.Workload, ref, rules)
	if err != nil {
		return err
	}

	if exist {
		logger.V(1).Info("routing rules already in place")
		return nil
	}

	if err := routing.Apply(ctx, r.Workload, ref, rules); err != nil {
		return err
	}

	logger.Info("applied routing rules", "subnet", rules.Subnet, "table", rules.Table)

	return nil
}

// ensureUPFService declares the UPF service layer and replans.
func (r *UPFConfigReconciler) ensureUPFService(ctx context.Context, ref workload.Ref) error {
	name := r.Settings.ContainerName

	layer := workload.ServiceLayer{
		Summary:     name + " layer",
		Description: "pebble config layer for " + name,
		Services: map[string]workload.Service{
			name: {
				Override: "replace",
				Startup:  "enabled",
				Command:  "upf -c " + r.Settings.ConfigPath(),
			},
		},
	}

	return workload.EnsureService(ctx, r.Workload, ref, name, layer)
}

// workloadRef locates the UPF container: first pod of the StatefulSet named
// after the UPFConfig.
func (r *UPFConfigReconciler) workloadRef(upfConfig *upfv1alpha1.UPFConfig) workload.Ref {
	return workload.Ref{
		Namespace: upfConfig.Namespace,
		Pod:       upfConfig.Name + "-0",
		Container: r.Settings.ContainerName,
	}
}

// setPhase records the phase and message on the status subresource.
func (r *UPFConfigReconciler) setPhase(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig, phase upfv1alpha1.UPFConfigPhase, message string) error {
	upfConfig.Status.Phase = phase
	upfConfig.Status.Message = message
	upfConfig.Status.ObservedGeneration = upfConfig.Generation

	if err := r.Status().Update(ctx, upfConfig); err != nil {
		return fmt.Errorf("failed to update UPFConfig status: %w", err)
	}

	return nil
}

// failed records the error on the status and returns it for requeueing.
func (r *UPFConfigReconciler) failed(ctx context.Context, upfConfig *upfv1alpha1.UPFConfig, reconcileErr error) (ctrl.Result, error) {
	log.FromContext(ctx).Error(reconcileErr, "reconciliation failed")
	reconcilesTotal.WithLabelValues(outcomeError).Inc()

	if err := r.setPhase(ctx, upfConfig, upfv1alpha1.PhaseError, reconcileErr.Error()); err != nil {
		log.FromContext(ctx).Error(err, "failed to record error status")
	}

	return ctrl.Result{}, reconcileErr
}

// SetupWithManager sets up the controller with the Manager.
func (r *UPFConfigReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&upfv1alpha1.UPFConfig{}).
		Complete(r)
}
