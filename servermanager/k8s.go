package servermanager

import (
	"context"

	"github.com/pkg/errors"
	autoscaling "k8s.io/api/autoscaling/v1"
	meta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Kubernetes is the Kubernetes server-manager variant: externalID is
// "namespace/statefulSetName". Start/Stop scale the StatefulSet to 1/0
// replicas, mirroring the teacher's server/k8s.go buildScaleFunction
// (which scales a StatefulSet between 0 and 1 replicas keyed off a
// Service's mc-router annotations); here the scale target is addressed
// directly by name instead of being discovered from a watched Service.
type Kubernetes struct {
	clientset *kubernetes.Clientset
}

// NewKubernetes builds a Kubernetes provider from an in-cluster or
// kubeconfig-derived REST config, already resolved by the caller.
func NewKubernetes(clientset *kubernetes.Clientset) *Kubernetes {
	return &Kubernetes{clientset: clientset}
}

func (k *Kubernetes) Name() string { return "kubernetes" }

func splitExternalID(externalID string) (namespace, name string, err error) {
	for i := 0; i < len(externalID); i++ {
		if externalID[i] == '/' {
			return externalID[:i], externalID[i+1:], nil
		}
	}
	return "", "", errors.Errorf("servermanager: externalID %q must be namespace/statefulSetName", externalID)
}

func (k *Kubernetes) Status(ctx context.Context, externalID string) (BackendState, error) {
	namespace, name, err := splitExternalID(externalID)
	if err != nil {
		return StateUnknown, err
	}

	scale, err := k.clientset.AppsV1().StatefulSets(namespace).GetScale(ctx, name, meta.GetOptions{})
	if err != nil {
		return StateUnknown, nil
	}

	switch {
	case scale.Status.Replicas == 0 && scale.Spec.Replicas == 0:
		return StateStopped, nil
	case scale.Status.Replicas < scale.Spec.Replicas:
		return StateStarting, nil
	case scale.Status.Replicas > 0 && scale.Spec.Replicas == 0:
		return StateStopping, nil
	case scale.Status.Replicas > 0:
		return StateRunning, nil
	default:
		return StateUnknown, nil
	}
}

func (k *Kubernetes) scaleTo(ctx context.Context, externalID string, replicas int32) error {
	namespace, name, err := splitExternalID(externalID)
	if err != nil {
		return err
	}

	scale, err := k.clientset.AppsV1().StatefulSets(namespace).GetScale(ctx, name, meta.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "servermanager: get scale for %q", externalID)
	}

	scale.Spec.Replicas = replicas
	_, err = k.clientset.AppsV1().StatefulSets(namespace).UpdateScale(ctx, name, &autoscaling.Scale{
		ObjectMeta: meta.ObjectMeta{
			Name:            scale.Name,
			Namespace:       scale.Namespace,
			UID:             scale.UID,
			ResourceVersion: scale.ResourceVersion,
		},
		Spec: autoscaling.ScaleSpec{Replicas: replicas},
	}, meta.UpdateOptions{})
	if err != nil {
		return errors.Wrapf(err, "servermanager: scale %q to %d", externalID, replicas)
	}
	return nil
}

func (k *Kubernetes) Start(ctx context.Context, externalID string) error {
	return k.scaleTo(ctx, externalID, 1)
}

func (k *Kubernetes) Stop(ctx context.Context, externalID string) error {
	return k.scaleTo(ctx, externalID, 0)
}

func (k *Kubernetes) Restart(ctx context.Context, externalID string) error {
	if err := k.scaleTo(ctx, externalID, 0); err != nil {
		return err
	}
	return k.scaleTo(ctx, externalID, 1)
}
