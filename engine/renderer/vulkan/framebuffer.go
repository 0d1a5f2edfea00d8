package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

type Framebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView

	device PresentDevice
}

func NewFramebuffer(device PresentDevice, renderPass vk.RenderPass, width, height uint32, attachments []vk.ImageView) (*Framebuffer, error) {
	fb := &Framebuffer{
		// Take a copy of the attachments.
		Attachments: append([]vk.ImageView(nil), attachments...),
		device:      device,
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	handle, err := device.CreateFramebuffer(&info)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	fb.Handle = handle
	return fb, nil
}

func (fb *Framebuffer) Destroy() {
	if fb.Handle != nil {
		fb.device.DestroyFramebuffer(fb.Handle)
		fb.Handle = nil
	}
	fb.Attachments = nil
}
