package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// Image is a device local 2D image with its memory and a single view.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32

	device PresentDevice
}

// NewDepthImage creates a depth attachment of the given format sized to extent.
func NewDepthImage(device PresentDevice, format vk.Format, extent vk.Extent2D) (*Image, error) {
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	handle, memory, err := device.CreateImageWithInfo(&info, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	img := &Image{
		Handle: handle,
		Memory: memory,
		Width:  extent.Width,
		Height: extent.Height,
		device: device,
	}
	view, err := createImageView(device, handle, format, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.View = view
	return img, nil
}

func createImageView(device PresentDevice, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	view, err := device.CreateImageView(&info)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return view, nil
}

func (img *Image) Destroy() {
	if img.View != nil {
		img.device.DestroyImageView(img.View)
		img.View = nil
	}
	if img.Handle != nil {
		img.device.DestroyImage(img.Handle)
		img.Handle = nil
	}
	if img.Memory != nil {
		img.device.FreeMemory(img.Memory)
		img.Memory = nil
	}
}
