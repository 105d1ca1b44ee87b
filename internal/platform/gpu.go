// gpu.go - GpuContext collaborator
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package platform

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/constellationstudio/engine/internal/errs"
)

// defaultBudgetBytes bounds the FrameBuffer allocator; sized comfortably
// above the resilience manager's 1280x720 degradation cap so ordinary
// operation never hits it.
const defaultBudgetBytes = 512 * 1024 * 1024

// FrameBuffer is a bounded allocation handed to a node for the duration of
// one Process call and returned via Release on exit; the pool has one
// exclusive owner per graph.
type FrameBuffer struct {
	Bytes  []byte
	Width  int
	Height int
}

// GpuContext provides device queues and a bounded FrameBuffer allocator.
// The core treats it as opaque; it expects Allocate to either succeed or
// return an errs.KindInsufficientMemory error.
type GpuContext interface {
	Name() string
	Allocate(width, height int) (*FrameBuffer, error)
	Release(*FrameBuffer)
}

// NewGpuContext attempts real Vulkan device discovery (loader, instance, at
// least one physical device; queue families are not inspected) and falls
// back to a software
// context on any failure. Engine start never fails for lack of a GPU.
func NewGpuContext() GpuContext {
	ctx, err := newVulkanContext()
	if err != nil {
		return newSoftwareContext()
	}
	return ctx
}

type vulkanContext struct {
	mu        sync.Mutex
	instance  vk.Instance
	allocated int
	budget    int
}

func newVulkanContext() (*vulkanContext, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("vulkan loader: %w", err)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan init: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:      vk.StructureTypeApplicationInfo,
		ApiVersion: vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("vkCreateInstance failed: %d", res)
	}
	vk.InitInstance(instance)

	var deviceCount uint32
	vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)
	if deviceCount == 0 {
		vk.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("no vulkan-capable gpu found")
	}

	return &vulkanContext{instance: instance, budget: defaultBudgetBytes}, nil
}

func (v *vulkanContext) Name() string { return "vulkan" }

func (v *vulkanContext) Allocate(width, height int) (*FrameBuffer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	size := width * height * 4
	if v.allocated+size > v.budget {
		return nil, errs.New(errs.KindInsufficientMemory, fmt.Errorf("need %d bytes, %d available", size, v.budget-v.allocated))
	}
	v.allocated += size
	return &FrameBuffer{Bytes: make([]byte, size), Width: width, Height: height}, nil
}

func (v *vulkanContext) Release(fb *FrameBuffer) {
	if fb == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.allocated -= len(fb.Bytes)
	if v.allocated < 0 {
		v.allocated = 0
	}
}

// softwareContext is the headless fallback: same interface, no GPU
// required.
type softwareContext struct {
	mu        sync.Mutex
	allocated int
	budget    int
}

func newSoftwareContext() *softwareContext {
	return &softwareContext{budget: defaultBudgetBytes}
}

func (s *softwareContext) Name() string { return "software" }

func (s *softwareContext) Allocate(width, height int) (*FrameBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := width * height * 4
	if s.allocated+size > s.budget {
		return nil, errs.New(errs.KindInsufficientMemory, fmt.Errorf("need %d bytes, %d available", size, s.budget-s.allocated))
	}
	s.allocated += size
	return &FrameBuffer{Bytes: make([]byte, size), Width: width, Height: height}, nil
}

func (s *softwareContext) Release(fb *FrameBuffer) {
	if fb == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocated -= len(fb.Bytes)
	if s.allocated < 0 {
		s.allocated = 0
	}
}

// HardwareAdvisory is a boot-time capability snapshot, exposed read-only
// at /export/hardware.
type HardwareAdvisory struct {
	GPUBackend               string `json:"gpu_backend"`
	VulkanAvailable          bool   `json:"vulkan_available"`
	RecommendedMaxResolution string `json:"recommended_max_resolution"`
}

// ProbeHardware constructs (and discards) a GpuContext purely to classify
// what backend engine start would get, never failing the boot sequence
// because no GPU is present.
func ProbeHardware() HardwareAdvisory {
	ctx := NewGpuContext()
	if ctx.Name() == "vulkan" {
		return HardwareAdvisory{GPUBackend: "vulkan", VulkanAvailable: true, RecommendedMaxResolution: "3840x2160"}
	}
	return HardwareAdvisory{GPUBackend: "software", VulkanAvailable: false, RecommendedMaxResolution: "1920x1080"}
}
