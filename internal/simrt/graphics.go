package simrt

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// device is the GPU the simulated compositor allocates swapchain images on.
type device struct {
	instance hal.Instance
	info     gputypes.AdapterInfo
	open     hal.OpenDevice
}

// openDevice opens the first adapter of the noop backend.
func openDevice() (*device, error) {
	inst, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("simrt: create instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, fmt.Errorf("simrt: no adapter")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("simrt: open device: %w", err)
	}
	return &device{instance: inst, info: adapters[0].Info, open: open}, nil
}

func (d *device) destroy() {
	d.open.Device.Destroy()
	d.instance.Destroy()
}

// createImages allocates one texture per swapchain image.
func (d *device) createImages(label string, info swapchainDesc, count int) ([]*Image, error) {
	images := make([]*Image, 0, count)
	for i := range count {
		tex, err := d.open.Device.CreateTexture(&hal.TextureDescriptor{
			Label: fmt.Sprintf("%s[%d]", label, i),
			Size: hal.Extent3D{
				Width:              info.width,
				Height:             info.height,
				DepthOrArrayLayers: info.layers,
			},
			MipLevelCount: info.mips,
			SampleCount:   info.samples,
			Dimension:     gputypes.TextureDimension2D,
			Format:        info.format,
			Usage:         info.usage,
		})
		if err != nil {
			d.destroyImages(images)
			return nil, fmt.Errorf("simrt: create image %d: %w", i, err)
		}
		images = append(images, &Image{tex: tex, width: int(info.width), height: int(info.height), format: info.format})
	}
	return images, nil
}

func (d *device) destroyImages(images []*Image) {
	for _, img := range images {
		d.open.Device.DestroyTexture(img.tex)
	}
}

// swapchainDesc is the texture shape of a swapchain.
type swapchainDesc struct {
	width, height, layers uint32
	mips, samples         uint32
	format                gputypes.TextureFormat
	usage                 gputypes.TextureUsage
}

// Image is a swapchain image. It implements gpucontext.Texture.
type Image struct {
	tex    hal.Texture
	width  int
	height int
	format gputypes.TextureFormat
}

// Width returns the image width in pixels.
func (i *Image) Width() int { return i.width }

// Height returns the image height in pixels.
func (i *Image) Height() int { return i.height }

// Format returns the image format.
func (i *Image) Format() gputypes.TextureFormat { return i.format }

// Texture returns the backing HAL texture.
func (i *Image) Texture() hal.Texture { return i.tex }

var _ gpucontext.Texture = (*Image)(nil)

// graphics is the binding handed to applications by Runtime.Graphics.
type graphics struct {
	d *device
}

func (g graphics) Device() gpucontext.Device   { return g.d.open.Device }
func (g graphics) Queue() gpucontext.Queue     { return g.d.open.Queue }
func (g graphics) Adapter() gpucontext.Adapter { return nil }

func (g graphics) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8UnormSrgb
}

func (g graphics) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: g.d.info.Name, Type: gpucontext.AdapterTypeSoftware}
}

var _ gpucontext.DeviceProvider = graphics{}
