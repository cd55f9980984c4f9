package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

var (
	// ErrUnsupportedDevice is returned when a consumer names an unknown device family.
	ErrUnsupportedDevice = errors.New("unsupported device family")
	// ErrUnboundConsumer is returned for consumers without a bound device.
	ErrUnboundConsumer = errors.New("no device bound to consumer")
)

// Device reads the status of and sends commands to one consumer's device.
type Device interface {
	Status(ctx context.Context, consumer string) (model.DeviceStatus, error)
	Start(ctx context.Context, consumer string) error
	Stop(ctx context.Context, consumer string) error
}

// Router dispatches status reads and commands to the device bound to each
// consumer. Devices are built by family factories registered under the
// consumer's output source name.
type Router struct {
	families *factory.Registry[Device]
	logger   logger.Logger

	mu    sync.RWMutex
	bound map[string]Device
}

func NewRouter(log logger.Logger) *Router {
	return &Router{
		families: factory.NewRegistry[Device](),
		logger:   log,
		bound:    make(map[string]Device),
	}
}

// RegisterFamily adds a device family.
func (r *Router) RegisterFamily(name string, f factory.Factory[Device]) error {
	return r.families.Register(name, f)
}

// Families lists the registered device families.
func (r *Router) Families() []string { return r.families.Types() }

// Bind builds the device of consumer from its family and raw configuration,
// replacing any previous binding.
func (r *Router) Bind(consumer, family string, conf map[string]any) error {
	if !slices.Contains(r.families.Types(), family) {
		return fmt.Errorf("%w: %q for consumer %s", ErrUnsupportedDevice, family, consumer)
	}
	d, err := r.families.Create(factory.ModuleConfig{Type: family, Conf: conf})
	if err != nil {
		return fmt.Errorf("device for consumer %s: %w", consumer, err)
	}
	r.mu.Lock()
	r.bound[consumer] = d
	r.mu.Unlock()
	r.logger.Infof("consumer %s bound to %s device", consumer, family)
	return nil
}

// Unbind forgets the device of consumer.
func (r *Router) Unbind(consumer string) {
	r.mu.Lock()
	delete(r.bound, consumer)
	r.mu.Unlock()
}

func (r *Router) device(consumer string) (Device, error) {
	r.mu.RLock()
	d, ok := r.bound[consumer]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnboundConsumer, consumer)
	}
	return d, nil
}

func (r *Router) Status(ctx context.Context, consumer string) (model.DeviceStatus, error) {
	d, err := r.device(consumer)
	if err != nil {
		return model.StatusOther, err
	}
	return d.Status(ctx, consumer)
}

func (r *Router) Start(ctx context.Context, consumer string) error {
	d, err := r.device(consumer)
	if err != nil {
		return err
	}
	return d.Start(ctx, consumer)
}

func (r *Router) Stop(ctx context.Context, consumer string) error {
	d, err := r.device(consumer)
	if err != nil {
		return err
	}
	return d.Stop(ctx, consumer)
}
